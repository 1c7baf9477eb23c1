package storage

import "context"

// Config - ...
type Config struct {
	DSN string
}

// MessageRepository keeps queue messages in a relational table.
// Queues are rows sharing the same queue column.
type MessageRepository interface {
	// Enqueue stores body in queue and returns the new message id.
	Enqueue(ctx context.Context, queue, body string) (int64, error)
	// Claim hides the oldest visible message for vt seconds and returns it,
	// or nil when none is visible.
	Claim(ctx context.Context, queue string, vt int) (*Message, error)
	// SetVisibility hides the message for vt seconds from now.
	SetVisibility(ctx context.Context, queue string, id int64, vt int) (int64, error)
	// Delete removes the message.
	Delete(ctx context.Context, queue string, id int64) (int64, error)
	Close()
}
