package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/freundallein/commonmq/chassis/rsmq"
)

// rsmqAPI is the part of rsmq.Client the queue uses.
type rsmqAPI interface {
	SendMessage(ctx context.Context, qname, message string) (string, error)
	ReceiveMessage(ctx context.Context, qname string) (*rsmq.Message, error)
	ChangeMessageVisibility(ctx context.Context, qname, id string, vt int) (int64, error)
	DeleteMessage(ctx context.Context, qname, id string) (int64, error)
	Quit() error
}

var newRSMQAPI = func(cfg Config, conn RSMQDescriptor) rsmqAPI {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conn.Address(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return rsmq.New(rdb, rsmq.WithNamespace(cfg.RedisNamespace))
}

// RSMQQueue implementation
type RSMQQueue struct {
	QueueName           string
	BadMessageQueueName string

	queue        rsmqAPI
	pollInterval time.Duration
}

// InitRSMQQueue ...
func InitRSMQQueue(cfg Config) (Client, error) {
	cfg = cfg.withDefaults()
	conn, err := ParseRSMQURL(cfg.Queue)
	if err != nil {
		return nil, err
	}
	q := &RSMQQueue{
		QueueName:    conn.QueueName,
		pollInterval: cfg.PollInterval,
	}
	if cfg.BadMessageQueue != "" {
		bad, err := ParseRSMQURL(cfg.BadMessageQueue)
		if err != nil {
			return nil, err
		}
		if err := conn.compatible(bad); err != nil {
			return nil, err
		}
		q.BadMessageQueueName = bad.QueueName
	}
	q.queue = newRSMQAPI(cfg, conn)
	log.WithFields(log.Fields{
		"event":   "init_queue",
		"queue":   "rsmq",
		"address": conn.Address(),
	}).Debug(q.QueueName)
	return q, nil
}

// Send ...
func (q *RSMQQueue) Send(ctx context.Context, body string) (string, error) {
	id, err := q.queue.SendMessage(ctx, q.QueueName, body)
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{
		"event": "send_message",
		"queue": "rsmq",
	}).Debug(id)
	return id, nil
}

// Receive ...
func (q *RSMQQueue) Receive(ctx context.Context) (*Message, error) {
	return poll(ctx, q.pollInterval, q.receiveOnce)
}

func (q *RSMQQueue) receiveOnce(ctx context.Context) (*Message, error) {
	received, err := q.queue.ReceiveMessage(ctx, q.QueueName)
	if err != nil || received == nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"event": "receive_message",
		"queue": "rsmq",
	}).Debug(received.ID)
	return &Message{
		ID:            received.ID,
		Body:          received.Message,
		ReceiveCount:  received.RC,
		FirstReceived: received.FR,
	}, nil
}

// ExtendVisibilityTimeout ...
func (q *RSMQQueue) ExtendVisibilityTimeout(ctx context.Context, id string, seconds int) error {
	affected, err := q.queue.ChangeMessageVisibility(ctx, q.QueueName, id, seconds)
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

// Delete ...
func (q *RSMQQueue) Delete(ctx context.Context, id string) error {
	affected, err := q.queue.DeleteMessage(ctx, q.QueueName, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(id)
	}
	log.WithFields(log.Fields{
		"event": "delete_message",
		"queue": "rsmq",
	}).Debug(id)
	return nil
}

// BadMessage ...
func (q *RSMQQueue) BadMessage(ctx context.Context, id, body string) (string, error) {
	if q.BadMessageQueueName == "" {
		return "", ErrNoBadMessageQueue
	}
	return moveToBadMessageQueue(id,
		func() (string, error) {
			return q.queue.SendMessage(ctx, q.BadMessageQueueName, body)
		},
		func() error {
			return q.Delete(ctx, id)
		},
	)
}

// Close ...
func (q *RSMQQueue) Close() error {
	return q.queue.Quit()
}
