package queue

import (
	"fmt"
)

type constructor func(Config) (Client, error)

// constructors is the registry of supported protocols. Each constructor
// checks its own primary/bad message queue compatibility before it opens a
// backend handle.
var constructors = map[Protocol]constructor{
	RSMQ:     InitRSMQQueue,
	SQS:      InitAWSQueue,
	Postgres: InitPGQueue,
}

// Protocols returns the supported protocols.
func Protocols() []Protocol {
	return []Protocol{RSMQ, SQS, Postgres}
}

// New validates cfg and builds the client for its protocol.
//
// Formats:
// - rsmq://[server[:port]/]queueName
// - sqs://region/accountId/queueName
// - pg://server[:port]/database/queueName
func New(cfg Config) (Client, error) {
	cfg = cfg.withDefaults()
	protocol, _, ok := splitProtocol(cfg.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingProtocol, cfg.Queue)
	}
	build, ok := constructors[protocol]
	if !ok {
		return nil, &UnsupportedProtocolError{Protocol: protocol}
	}
	if cfg.BadMessageQueue != "" {
		badProtocol, _, _ := splitProtocol(cfg.BadMessageQueue)
		if badProtocol != protocol {
			return nil, ErrProtocolMismatch
		}
	}
	return build(cfg)
}
