package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/freundallein/commonmq/chassis/logging"
	"github.com/freundallein/commonmq/chassis/protocol"
	"github.com/freundallein/commonmq/chassis/queue"
)

const defaultErrorBackoff = time.Second

// Handler processes one decoded request. A returned error leaves the message
// on the queue for redelivery.
type Handler func(ctx context.Context, request *protocol.Request) error

// Config ...
type Config struct {
	Queue    queue.Client
	Handlers map[string]Handler
	Workers  int
	// VisibilityTimeout, when positive, is applied to every message before
	// its handler runs.
	VisibilityTimeout int
	ErrorBackoff      time.Duration
}

func worker(ctx context.Context, cfg *Config, workerID int, group *sync.WaitGroup) {
	defer group.Done()
	backoff := cfg.ErrorBackoff
	if backoff <= 0 {
		backoff = defaultErrorBackoff
	}
	for {
		msg, err := cfg.Queue.Receive(ctx)
		if ctx.Err() != nil {
			log.WithFields(log.Fields{
				"event":  "ctx_canceled",
				"worker": workerID,
			}).Info("exit goroutine")
			return
		}
		if err != nil {
			log.WithFields(log.Fields{
				"event":  "receive_failed",
				"worker": workerID,
			}).Error(err)
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			continue
		}
		process(ctx, cfg, workerID, msg)
	}
}

// outcome of processing a single message
type outcome string

const (
	processed  outcome = "processed"
	rejected   outcome = "rejected"
	redeliver  outcome = "redeliver"
	ackFailed  outcome = "ack_failed"
	moveFailed outcome = "bad_message_failed"
)

func process(ctx context.Context, cfg *Config, workerID int, msg *queue.Message) outcome {
	request, err := protocol.Decode(msg.Body)
	if err != nil {
		log.WithFields(log.Fields{
			"event":     "receive_broken_message",
			"worker":    workerID,
			"messageID": msg.ID,
		}).Error(err)
		return reject(ctx, cfg, workerID, msg, protocol.NewError("", protocol.ErrorCode(err), err.Error()))
	}
	handler, ok := cfg.Handlers[request.Method]
	if !ok {
		log.WithFields(log.Fields{
			"event":     "handler_not_found",
			"worker":    workerID,
			"messageID": msg.ID,
			"requestID": request.ID,
		}).Error(request.Method)
		return reject(ctx, cfg, workerID, msg, protocol.NewError(request.ID, protocol.CodeMethodNotFound, "method not found: "+request.Method))
	}
	log.WithFields(log.Fields{
		"event":        "receive_message",
		"worker":       workerID,
		"messageID":    msg.ID,
		"requestID":    request.ID,
		"receiveCount": msg.ReceiveCount,
	}).Info(request)

	if cfg.VisibilityTimeout > 0 {
		if err := cfg.Queue.ExtendVisibilityTimeout(ctx, msg.ID, cfg.VisibilityTimeout); err != nil {
			log.WithFields(log.Fields{
				"event":     "extend_visibility_failed",
				"worker":    workerID,
				"messageID": msg.ID,
			}).Error(err)
		}
	}
	if err := handler(ctx, request); err != nil {
		log.WithFields(log.Fields{
			"event":     "handler_failed",
			"worker":    workerID,
			"messageID": msg.ID,
			"requestID": request.ID,
		}).Error(err)
		return redeliver
	}
	if err := cfg.Queue.Delete(ctx, msg.ID); err != nil {
		log.WithFields(log.Fields{
			"event":     "ack_message_failed",
			"worker":    workerID,
			"messageID": msg.ID,
			"requestID": request.ID,
		}).Error(err)
		return ackFailed
	}
	return processed
}

// reject moves msg to the bad message queue. reason is the JSON-RPC error
// a caller would have received and is logged with the move.
func reject(ctx context.Context, cfg *Config, workerID int, msg *queue.Message, reason *protocol.Response) outcome {
	reasonJSON, _ := reason.JSON()
	newID, err := cfg.Queue.BadMessage(ctx, msg.ID, msg.Body)
	if errors.Is(err, queue.ErrNoBadMessageQueue) {
		// nowhere to park it; let it expire or be redelivered
		log.WithFields(log.Fields{
			"event":     "bad_message_dropped",
			"worker":    workerID,
			"messageID": msg.ID,
			"reason":    reasonJSON,
		}).Error(err)
		return moveFailed
	}
	if err != nil {
		log.WithFields(log.Fields{
			"event":     "bad_message_failed",
			"worker":    workerID,
			"messageID": msg.ID,
			"newID":     newID,
			"reason":    reasonJSON,
		}).Error(err)
		return moveFailed
	}
	log.WithFields(log.Fields{
		"event":     "bad_message",
		"worker":    workerID,
		"messageID": msg.ID,
		"reason":    reasonJSON,
	}).Info("moved to bad message queue as ", newID)
	return rejected
}

// Run ...
func Run(ctx context.Context, cfg *Config, group *sync.WaitGroup) {
	log.WithFields(log.Fields{
		"event": "start_service",
	}).Info("starting ", cfg.Workers, " workers")
	for wrk := 1; wrk <= cfg.Workers; wrk++ {
		group.Add(1)
		go worker(ctx, cfg, wrk, group)
	}
}
