package storage

import (
	"time"
)

// Message - a row of t_message
type Message struct {
	ID              int64
	Queue           string
	Body            string
	ReceiveCount    int
	VisibleDt       time.Time
	FirstReceivedDt time.Time
	CreatedDt       time.Time
}
