package queue

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Protocol is the scheme part of a queue URL.
type Protocol string

// Supported protocols
const (
	RSMQ     Protocol = "rsmq"
	SQS      Protocol = "sqs"
	Postgres Protocol = "pg"
)

const (
	protocolSeparator = "://"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultPGPort    = 5432

	sqsURLTemplate = "https://sqs.%s.amazonaws.com/%s/%s"
)

// Descriptor is a parsed queue URL. Each protocol has its own implementation
// carrying exactly the fields it needs.
type Descriptor interface {
	Protocol() Protocol
	// Name of the queue inside the backend.
	Name() string
	// Address the backend handle connects to or addresses the queue by.
	Address() string
	// compatible reports whether other can be served by the same backend handle.
	compatible(other Descriptor) error
}

// RSMQDescriptor - rsmq://[host[:port]/]queueName
type RSMQDescriptor struct {
	Host      string
	Port      int
	QueueName string
}

// Protocol ...
func (d RSMQDescriptor) Protocol() Protocol { return RSMQ }

// Name ...
func (d RSMQDescriptor) Name() string { return d.QueueName }

// Address is the redis host:port.
func (d RSMQDescriptor) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

func (d RSMQDescriptor) compatible(other Descriptor) error {
	o, ok := other.(RSMQDescriptor)
	if !ok {
		return ErrProtocolMismatch
	}
	if o.Host != d.Host || o.Port != d.Port {
		return fmt.Errorf("%w: primary and bad message queues must have matching hosts and ports", ErrIncompatibleBadMessageQueue)
	}
	return nil
}

// SQSDescriptor - sqs://region/accountId/queueName
type SQSDescriptor struct {
	Region    string
	AccountID string
	QueueName string
}

// Protocol ...
func (d SQSDescriptor) Protocol() Protocol { return SQS }

// Name ...
func (d SQSDescriptor) Name() string { return d.QueueName }

// Address is the fully qualified queue URL.
func (d SQSDescriptor) Address() string {
	return fmt.Sprintf(sqsURLTemplate, d.Region, d.AccountID, d.QueueName)
}

func (d SQSDescriptor) compatible(other Descriptor) error {
	o, ok := other.(SQSDescriptor)
	if !ok {
		return ErrProtocolMismatch
	}
	if o.Region != d.Region {
		return fmt.Errorf("%w: primary and bad message queues must have matching regions", ErrIncompatibleBadMessageQueue)
	}
	return nil
}

// PGDescriptor - pg://host[:port]/database/queueName
type PGDescriptor struct {
	Host      string
	Port      int
	Database  string
	QueueName string
}

// Protocol ...
func (d PGDescriptor) Protocol() Protocol { return Postgres }

// Name ...
func (d PGDescriptor) Name() string { return d.QueueName }

// Address is a connection string without credentials; pgx fills those in
// from PGUSER/PGPASSWORD.
func (d PGDescriptor) Address() string {
	return fmt.Sprintf("postgres://%s/%s", net.JoinHostPort(d.Host, strconv.Itoa(d.Port)), d.Database)
}

func (d PGDescriptor) compatible(other Descriptor) error {
	o, ok := other.(PGDescriptor)
	if !ok {
		return ErrProtocolMismatch
	}
	if o.Host != d.Host || o.Port != d.Port || o.Database != d.Database {
		return fmt.Errorf("%w: primary and bad message queues must share host, port and database", ErrIncompatibleBadMessageQueue)
	}
	return nil
}

// splitProtocol returns the scheme and the remainder of url.
func splitProtocol(url string) (Protocol, string, bool) {
	idx := strings.Index(url, protocolSeparator)
	if idx == -1 {
		return "", "", false
	}
	return Protocol(url[:idx]), url[idx+len(protocolSeparator):], true
}

func malformed(url, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrMalformedURL, url, reason)
}

// ParseURL parses any supported queue URL.
func ParseURL(url string) (Descriptor, error) {
	protocol, _, ok := splitProtocol(url)
	if !ok {
		return nil, malformed(url, "missing "+protocolSeparator)
	}
	switch protocol {
	case RSMQ:
		return ParseRSMQURL(url)
	case SQS:
		return ParseSQSURL(url)
	case Postgres:
		return ParsePGURL(url)
	}
	return nil, &UnsupportedProtocolError{Protocol: protocol}
}

// ParseRSMQURL - rsmq://[host[:port]/]queueName
func ParseRSMQURL(url string) (RSMQDescriptor, error) {
	_, rest, ok := splitProtocol(url)
	if !ok {
		return RSMQDescriptor{}, malformed(url, "missing "+protocolSeparator)
	}
	d := RSMQDescriptor{Host: defaultRedisHost, Port: defaultRedisPort}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		d.QueueName = parts[0]
	case 2:
		host, port, err := splitHostPort(parts[0], defaultRedisPort)
		if err != nil {
			return RSMQDescriptor{}, malformed(url, err.Error())
		}
		d.Host, d.Port, d.QueueName = host, port, parts[1]
	default:
		return RSMQDescriptor{}, malformed(url, "expected [host[:port]/]queueName")
	}
	if d.QueueName == "" {
		return RSMQDescriptor{}, malformed(url, "empty queue name")
	}
	return d, nil
}

// ParseSQSURL - sqs://region/accountId/queueName
func ParseSQSURL(url string) (SQSDescriptor, error) {
	_, rest, ok := splitProtocol(url)
	if !ok {
		return SQSDescriptor{}, malformed(url, "missing "+protocolSeparator)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return SQSDescriptor{}, malformed(url, "expected region/accountId/queueName")
	}
	return SQSDescriptor{Region: parts[0], AccountID: parts[1], QueueName: parts[2]}, nil
}

// ParsePGURL - pg://host[:port]/database/queueName
func ParsePGURL(url string) (PGDescriptor, error) {
	_, rest, ok := splitProtocol(url)
	if !ok {
		return PGDescriptor{}, malformed(url, "missing "+protocolSeparator)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return PGDescriptor{}, malformed(url, "expected host[:port]/database/queueName")
	}
	host, port, err := splitHostPort(parts[0], defaultPGPort)
	if err != nil {
		return PGDescriptor{}, malformed(url, err.Error())
	}
	return PGDescriptor{Host: host, Port: port, Database: parts[1], QueueName: parts[2]}, nil
}

// splitHostPort accepts host, host:port, [ipv6] and [ipv6]:port.
func splitHostPort(address string, defaultPort int) (string, int, error) {
	if address == "" {
		return "", 0, errors.New("empty host")
	}
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		if strings.HasPrefix(address, "[") && strings.HasSuffix(address, "]") {
			host = address[1 : len(address)-1]
		} else if strings.Contains(address, ":") {
			return "", 0, fmt.Errorf("invalid address %q", address)
		} else {
			host = address
		}
		if host == "" {
			return "", 0, errors.New("empty host")
		}
		return host, defaultPort, nil
	}
	if host == "" {
		return "", 0, errors.New("empty host")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}
