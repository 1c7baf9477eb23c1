package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedURL is returned when a queue URL can't be parsed for its protocol
	ErrMalformedURL = errors.New("malformed queue url")

	// ErrMissingProtocol is returned when the queue URL has no "scheme://" prefix
	ErrMissingProtocol = errors.New("queue does not contain a protocol")

	// ErrUnsupportedProtocol is returned for a scheme with no registered client
	ErrUnsupportedProtocol = errors.New("queue protocol is not supported")

	// ErrProtocolMismatch is returned when primary and bad message queues use different schemes
	ErrProtocolMismatch = errors.New("bad message queue and primary queue must have same protocol")

	// ErrIncompatibleBadMessageQueue is returned when the bad message queue lives
	// somewhere the primary queue's backend handle can't reach
	ErrIncompatibleBadMessageQueue = errors.New("incompatible bad message queue")

	// ErrMessageNotFound is returned when the backend no longer has the message
	ErrMessageNotFound = errors.New("message not found")

	// ErrNoReceipt is returned when a receipt handle is required but this client never received the message
	ErrNoReceipt = errors.New("no receipt handle for message available")

	// ErrNoBadMessageQueue is returned by BadMessage when no bad message queue is configured
	ErrNoBadMessageQueue = errors.New("no bad message queue configured")
)

// UnsupportedProtocolError names the scheme no client is registered for.
// It matches ErrUnsupportedProtocol with errors.Is.
type UnsupportedProtocolError struct {
	Protocol Protocol
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("queue protocol %s is not supported", e.Protocol)
}

// Is ...
func (e *UnsupportedProtocolError) Is(target error) bool {
	return target == ErrUnsupportedProtocol
}
