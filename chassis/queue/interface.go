package queue

import (
	"context"
	"time"
)

const (
	// DefaultQueue is used when Config.Queue is empty.
	DefaultQueue = "rsmq://commonmq"
	// DefaultPollInterval between receive attempts on an empty queue.
	DefaultPollInterval = time.Second
	// DefaultReceiptTTL matches the longest visibility timeout SQS allows.
	DefaultReceiptTTL = 12 * time.Hour
	// DefaultVisibilityTimeout for backends without a per-queue setting, in seconds.
	DefaultVisibilityTimeout = 30
)

// Config - unified configuration for queue clients
type Config struct {
	Queue           string
	BadMessageQueue string
	PollInterval    time.Duration

	// RSMQ specified
	RedisPassword  string
	RedisDB        int
	RedisNamespace string

	// AWS specified
	CredentialsFile    string
	CredentialsProfile string
	Retries            int
	Endpoint           string
	WaitTimeSeconds    int64
	ReceiptTTL         time.Duration

	// Postgres specified
	VisibilityTimeout int
}

func (cfg Config) withDefaults() Config {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReceiptTTL <= 0 {
		cfg.ReceiptTTL = DefaultReceiptTTL
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = DefaultVisibilityTimeout
	}
	return cfg
}

// Message unified presentation for a received queue message
type Message struct {
	ID            string
	Body          string
	ReceiveCount  int
	FirstReceived time.Time
}

// Client is the uniform lifecycle every queue backend implements.
// All methods are safe for concurrent use.
type Client interface {
	// Send puts body on the primary queue and returns the backend message id.
	Send(ctx context.Context, body string) (string, error)

	// Receive blocks until a message is available, a backend error occurs
	// or ctx is done. An empty queue is polled every PollInterval.
	Receive(ctx context.Context) (*Message, error)

	// ExtendVisibilityTimeout hides a received message for another seconds.
	ExtendVisibilityTimeout(ctx context.Context, id string, seconds int) error

	// Delete acknowledges a message, removing it from the primary queue.
	Delete(ctx context.Context, id string) error

	// BadMessage sends body to the bad message queue and then deletes id
	// from the primary queue. The returned id is the bad message queue's;
	// it is set whenever the send succeeded, even if the delete failed.
	BadMessage(ctx context.Context, id, body string) (string, error)

	// Close releases the backend handle.
	Close() error
}
