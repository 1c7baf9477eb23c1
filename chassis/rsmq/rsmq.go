// Package rsmq is a Redis Simple Message Queue client on go-redis. Queues
// and messages share RSMQ's key layout, so queues can be fed or drained by
// other RSMQ implementations.
package rsmq

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultNamespace prefixes every key.
	DefaultNamespace = "rsmq"

	defaultVT      = 30
	defaultDelay   = 0
	defaultMaxSize = 65536

	maxVT   = 9999999
	idChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	// ErrQueueNotFound is returned for operations on a queue nobody created
	ErrQueueNotFound = errors.New("queue not found")

	// ErrQueueExists is returned by CreateQueue for an existing queue
	ErrQueueExists = errors.New("queue exists")

	// ErrInvalidQueueName - names are 1-160 chars of [a-zA-Z0-9_-]
	ErrInvalidQueueName = errors.New("invalid queue name")

	// ErrInvalidVT - visibility timeouts are 0-9999999 seconds
	ErrInvalidVT = errors.New("invalid visibility timeout")

	// ErrMessageTooLong is returned when a message exceeds the queue's maxsize
	ErrMessageTooLong = errors.New("message too long")

	queueNameRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,160}$`)
)

// receiveScript claims the first visible message, hiding it until ARGV[2].
//
// Keys:
// 1. KEYS[1] - the queue's sorted set, KEYS[1]..":Q" is its hash
//
// Args:
// 1. ARGV[1] - now, unix ms
// 2. ARGV[2] - now + vt, unix ms
//
// Returns {id, body, rc, fr} or an empty table.
var receiveScript = redis.NewScript(`
local msg = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", "0", "1")
if #msg == 0 then
	return {}
end
redis.call("ZADD", KEYS[1], ARGV[2], msg[1])
redis.call("HINCRBY", KEYS[1] .. ":Q", "totalrecv", 1)
local mbody = redis.call("HGET", KEYS[1] .. ":Q", msg[1])
local rc = redis.call("HINCRBY", KEYS[1] .. ":Q", msg[1] .. ":rc", 1)
local o = {msg[1], mbody, rc}
if rc == 1 then
	redis.call("HSET", KEYS[1] .. ":Q", msg[1] .. ":fr", ARGV[1])
	table.insert(o, ARGV[1])
else
	local fr = redis.call("HGET", KEYS[1] .. ":Q", msg[1] .. ":fr")
	table.insert(o, fr)
end
return o
`)

// changeVisibilityScript rescores an existing message.
//
// Args:
// 1. ARGV[1] - message id
// 2. ARGV[2] - new visible-at, unix ms
//
// Returns 1 when the message exists, 0 otherwise.
var changeVisibilityScript = redis.NewScript(`
local msg = redis.call("ZSCORE", KEYS[1], ARGV[1])
if not msg then
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
return 1
`)

// QueueAttributes used by CreateQueue. Zero values take RSMQ defaults,
// MaxSize -1 means unlimited.
type QueueAttributes struct {
	VT      int
	Delay   int
	MaxSize int
}

// Message as stored by RSMQ.
type Message struct {
	ID      string
	Message string
	// RC is how many times the message has been received.
	RC int
	// FR is the first receive time.
	FR time.Time
	// Sent is decoded from the id.
	Sent time.Time
}

type queueInfo struct {
	vt      int64
	delay   int64
	maxSize int64
	now     time.Time
}

// Client ...
type Client struct {
	rdb redis.UniversalClient
	ns  string
}

// Option is a function that configures the client
type Option func(*Client)

// WithNamespace sets the key prefix, "rsmq" by default.
func WithNamespace(ns string) Option {
	return func(c *Client) {
		if ns != "" {
			c.ns = ns
		}
	}
}

// New wraps an existing redis client.
func New(rdb redis.UniversalClient, opts ...Option) *Client {
	c := &Client{
		rdb: rdb,
		ns:  DefaultNamespace,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) key(qname string) string {
	return c.ns + ":" + qname
}

func (c *Client) hashKey(qname string) string {
	return c.key(qname) + ":Q"
}

func (c *Client) queuesKey() string {
	return c.ns + ":QUEUES"
}

// CreateQueue creates qname with attrs.
func (c *Client) CreateQueue(ctx context.Context, qname string, attrs QueueAttributes) error {
	if !queueNameRE.MatchString(qname) {
		return ErrInvalidQueueName
	}
	if attrs.VT == 0 {
		attrs.VT = defaultVT
	}
	if attrs.MaxSize == 0 {
		attrs.MaxSize = defaultMaxSize
	}
	if attrs.VT < 0 || attrs.VT > maxVT {
		return ErrInvalidVT
	}
	now, err := c.rdb.Time(ctx).Result()
	if err != nil {
		return err
	}
	created := strconv.FormatInt(now.Unix(), 10)
	hkey := c.hashKey(qname)

	pipe := c.rdb.TxPipeline()
	setVT := pipe.HSetNX(ctx, hkey, "vt", attrs.VT)
	pipe.HSetNX(ctx, hkey, "delay", attrs.Delay)
	pipe.HSetNX(ctx, hkey, "maxsize", attrs.MaxSize)
	pipe.HSetNX(ctx, hkey, "created", created)
	pipe.HSetNX(ctx, hkey, "modified", created)
	pipe.SAdd(ctx, c.queuesKey(), qname)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if !setVT.Val() {
		return ErrQueueExists
	}
	return nil
}

func (c *Client) getQueue(ctx context.Context, qname string) (*queueInfo, error) {
	if !queueNameRE.MatchString(qname) {
		return nil, ErrInvalidQueueName
	}
	pipe := c.rdb.Pipeline()
	attrs := pipe.HMGet(ctx, c.hashKey(qname), "vt", "delay", "maxsize")
	tm := pipe.Time(ctx)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	vals := attrs.Val()
	if len(vals) != 3 || vals[0] == nil {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotFound, qname)
	}
	q := &queueInfo{now: tm.Val()}
	var err error
	if q.vt, err = attrInt(vals[0]); err != nil {
		return nil, err
	}
	if q.delay, err = attrInt(vals[1]); err != nil {
		return nil, err
	}
	if q.maxSize, err = attrInt(vals[2]); err != nil {
		return nil, err
	}
	return q, nil
}

func attrInt(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("rsmq: unexpected queue attribute %v", v)
	}
	return strconv.ParseInt(s, 10, 64)
}

func newID(now time.Time) string {
	b := make([]byte, 22)
	for i := range b {
		b[i] = idChars[rand.Intn(len(idChars))]
	}
	return strconv.FormatInt(now.UnixNano()/int64(time.Microsecond), 36) + string(b)
}

// sentAt decodes the timestamp prefix of an id.
func sentAt(id string) time.Time {
	if len(id) < 22 {
		return time.Time{}
	}
	us, err := strconv.ParseInt(id[:len(id)-22], 36, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, us*int64(time.Microsecond))
}

func unixMilli(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// SendMessage enqueues message and returns its id.
func (c *Client) SendMessage(ctx context.Context, qname, message string) (string, error) {
	q, err := c.getQueue(ctx, qname)
	if err != nil {
		return "", err
	}
	if q.maxSize != -1 && int64(len(message)) > q.maxSize {
		return "", ErrMessageTooLong
	}
	id := newID(q.now)
	hkey := c.hashKey(qname)

	pipe := c.rdb.TxPipeline()
	pipe.ZAdd(ctx, c.key(qname), redis.Z{
		Score:  float64(unixMilli(q.now) + q.delay*1000),
		Member: id,
	})
	pipe.HSet(ctx, hkey, id, message)
	pipe.HIncrBy(ctx, hkey, "totalsent", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// ReceiveMessage claims one visible message for the queue's vt. An empty
// queue yields nil, nil.
func (c *Client) ReceiveMessage(ctx context.Context, qname string) (*Message, error) {
	q, err := c.getQueue(ctx, qname)
	if err != nil {
		return nil, err
	}
	now := unixMilli(q.now)
	res, err := receiveScript.Run(ctx, c.rdb, []string{c.key(qname)}, now, now+q.vt*1000).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("rsmq: unexpected receive reply of %d elements", len(res))
	}
	id, _ := res[0].(string)
	body, _ := res[1].(string)
	rc, _ := res[2].(int64)
	msg := &Message{
		ID:      id,
		Message: body,
		RC:      int(rc),
		Sent:    sentAt(id),
	}
	if fr, ok := res[3].(string); ok {
		if ms, err := strconv.ParseInt(fr, 10, 64); err == nil {
			msg.FR = time.Unix(0, ms*int64(time.Millisecond))
		}
	}
	return msg, nil
}

// ChangeMessageVisibility hides id for vt seconds from now. It returns the
// number of messages affected, 0 when id is unknown.
func (c *Client) ChangeMessageVisibility(ctx context.Context, qname, id string, vt int) (int64, error) {
	if vt < 0 || vt > maxVT {
		return 0, ErrInvalidVT
	}
	q, err := c.getQueue(ctx, qname)
	if err != nil {
		return 0, err
	}
	visibleAt := unixMilli(q.now) + int64(vt)*1000
	return changeVisibilityScript.Run(ctx, c.rdb, []string{c.key(qname)}, id, visibleAt).Int64()
}

// DeleteMessage removes id. It returns the number of messages affected.
func (c *Client) DeleteMessage(ctx context.Context, qname, id string) (int64, error) {
	if !queueNameRE.MatchString(qname) {
		return 0, ErrInvalidQueueName
	}
	pipe := c.rdb.TxPipeline()
	zrem := pipe.ZRem(ctx, c.key(qname), id)
	hdel := pipe.HDel(ctx, c.hashKey(qname), id, id+":rc", id+":fr")
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	if zrem.Val() == 1 && hdel.Val() > 0 {
		return 1, nil
	}
	return 0, nil
}

// Quit closes the redis connection.
func (c *Client) Quit() error {
	return c.rdb.Close()
}
