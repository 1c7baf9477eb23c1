package queue

import (
	"context"
	"fmt"
	"time"
)

// poll calls receive until it yields a message or an error, waiting interval
// between empty attempts. Nothing is locked while waiting.
func poll(ctx context.Context, interval time.Duration, receive func(context.Context) (*Message, error)) (*Message, error) {
	for {
		msg, err := receive(ctx)
		if err != nil || msg != nil {
			return msg, err
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// moveToBadMessageQueue sends first and deletes only after the send is
// confirmed. A failed delete is reported along with the new id.
func moveToBadMessageQueue(id string, send func() (string, error), del func() error) (string, error) {
	newID, err := send()
	if err != nil {
		return "", err
	}
	if err := del(); err != nil {
		return newID, fmt.Errorf("delete %s after moving it to bad message queue as %s: %w", id, newID, err)
	}
	return newID, nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
}
