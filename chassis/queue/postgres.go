package queue

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/freundallein/commonmq/chassis/storage"
)

var newPGRepository = func(ctx context.Context, cfg Config, conn PGDescriptor) (storage.MessageRepository, error) {
	return storage.InitPGRepository(ctx, storage.Config{DSN: conn.Address()})
}

// PGQueue keeps messages in a postgres table, see storage/schema.sql.
type PGQueue struct {
	QueueName           string
	BadMessageQueueName string

	repo              storage.MessageRepository
	pollInterval      time.Duration
	visibilityTimeout int
}

// InitPGQueue ...
func InitPGQueue(cfg Config) (Client, error) {
	cfg = cfg.withDefaults()
	conn, err := ParsePGURL(cfg.Queue)
	if err != nil {
		return nil, err
	}
	q := &PGQueue{
		QueueName:         conn.QueueName,
		pollInterval:      cfg.PollInterval,
		visibilityTimeout: cfg.VisibilityTimeout,
	}
	if cfg.BadMessageQueue != "" {
		bad, err := ParsePGURL(cfg.BadMessageQueue)
		if err != nil {
			return nil, err
		}
		if err := conn.compatible(bad); err != nil {
			return nil, err
		}
		q.BadMessageQueueName = bad.QueueName
	}
	if q.repo, err = newPGRepository(context.Background(), cfg, conn); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"event":   "init_queue",
		"queue":   "postgres",
		"address": conn.Address(),
	}).Debug(q.QueueName)
	return q, nil
}

// Send ...
func (q *PGQueue) Send(ctx context.Context, body string) (string, error) {
	id, err := q.repo.Enqueue(ctx, q.QueueName, body)
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{
		"event": "send_message",
		"queue": "postgres",
	}).Debug(id)
	return strconv.FormatInt(id, 10), nil
}

// Receive ...
func (q *PGQueue) Receive(ctx context.Context) (*Message, error) {
	return poll(ctx, q.pollInterval, q.receiveOnce)
}

func (q *PGQueue) receiveOnce(ctx context.Context) (*Message, error) {
	claimed, err := q.repo.Claim(ctx, q.QueueName, q.visibilityTimeout)
	if err != nil || claimed == nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"event": "receive_message",
		"queue": "postgres",
	}).Debug(claimed.ID)
	return &Message{
		ID:            strconv.FormatInt(claimed.ID, 10),
		Body:          claimed.Body,
		ReceiveCount:  claimed.ReceiveCount,
		FirstReceived: claimed.FirstReceivedDt,
	}, nil
}

// ExtendVisibilityTimeout ...
func (q *PGQueue) ExtendVisibilityTimeout(ctx context.Context, id string, seconds int) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return notFound(id)
	}
	affected, err := q.repo.SetVisibility(ctx, q.QueueName, rowID, seconds)
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

// Delete ...
func (q *PGQueue) Delete(ctx context.Context, id string) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return notFound(id)
	}
	affected, err := q.repo.Delete(ctx, q.QueueName, rowID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(id)
	}
	log.WithFields(log.Fields{
		"event": "delete_message",
		"queue": "postgres",
	}).Debug(id)
	return nil
}

// BadMessage ...
func (q *PGQueue) BadMessage(ctx context.Context, id, body string) (string, error) {
	if q.BadMessageQueueName == "" {
		return "", ErrNoBadMessageQueue
	}
	return moveToBadMessageQueue(id,
		func() (string, error) {
			newID, err := q.repo.Enqueue(ctx, q.BadMessageQueueName, body)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(newID, 10), nil
		},
		func() error {
			return q.Delete(ctx, id)
		},
	)
}

// Close ...
func (q *PGQueue) Close() error {
	q.repo.Close()
	return nil
}
