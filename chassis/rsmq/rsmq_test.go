package rsmq

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)
	c := New(redis.NewClient(&redis.Options{Addr: s.Addr()}))
	t.Cleanup(func() { c.Quit() })
	return s, c
}

func TestCreateQueue(t *testing.T) {
	ctx := context.Background()
	s, c := newTestClient(t)

	require.NoError(t, c.CreateQueue(ctx, "bananaqueue", QueueAttributes{}))
	assert.Equal(t, "30", s.HGet("rsmq:bananaqueue:Q", "vt"))
	assert.Equal(t, "65536", s.HGet("rsmq:bananaqueue:Q", "maxsize"))
	assert.True(t, s.Exists("rsmq:QUEUES"))

	assert.ErrorIs(t, c.CreateQueue(ctx, "bananaqueue", QueueAttributes{}), ErrQueueExists)
	assert.ErrorIs(t, c.CreateQueue(ctx, "banana queue", QueueAttributes{}), ErrInvalidQueueName)
	assert.ErrorIs(t, c.CreateQueue(ctx, "other", QueueAttributes{VT: -1}), ErrInvalidVT)
}

func TestSendReceive(t *testing.T) {
	ctx := context.Background()
	s, c := newTestClient(t)
	require.NoError(t, c.CreateQueue(ctx, "q", QueueAttributes{}))

	id, err := c.SendMessage(ctx, "q", `{"host":"myhost"}`)
	require.NoError(t, err)
	assert.Len(t, id, 32)
	assert.Equal(t, "1", s.HGet("rsmq:q:Q", "totalsent"))

	msg, err := c.ReceiveMessage(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, `{"host":"myhost"}`, msg.Message)
	assert.Equal(t, 1, msg.RC)
	assert.False(t, msg.FR.IsZero())
	assert.False(t, msg.Sent.IsZero())

	// hidden for the queue's vt
	msg, err = c.ReceiveMessage(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestReceiveEmptyQueue(t *testing.T) {
	ctx := context.Background()
	_, c := newTestClient(t)
	require.NoError(t, c.CreateQueue(ctx, "q", QueueAttributes{}))

	msg, err := c.ReceiveMessage(ctx, "q")
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestQueueNotFound(t *testing.T) {
	ctx := context.Background()
	_, c := newTestClient(t)

	_, err := c.SendMessage(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrQueueNotFound)
	_, err = c.ReceiveMessage(ctx, "missing")
	assert.ErrorIs(t, err, ErrQueueNotFound)
}

func TestMessageTooLong(t *testing.T) {
	ctx := context.Background()
	_, c := newTestClient(t)
	require.NoError(t, c.CreateQueue(ctx, "q", QueueAttributes{MaxSize: 4}))

	_, err := c.SendMessage(ctx, "q", "12345")
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestChangeMessageVisibility(t *testing.T) {
	ctx := context.Background()
	_, c := newTestClient(t)
	require.NoError(t, c.CreateQueue(ctx, "q", QueueAttributes{}))

	id, err := c.SendMessage(ctx, "q", "body")
	require.NoError(t, err)
	_, err = c.ReceiveMessage(ctx, "q")
	require.NoError(t, err)

	affected, err := c.ChangeMessageVisibility(ctx, "q", id, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	msg, err := c.ReceiveMessage(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, 2, msg.RC)

	affected, err = c.ChangeMessageVisibility(ctx, "q", "unknown", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	_, err = c.ChangeMessageVisibility(ctx, "q", id, maxVT+1)
	assert.ErrorIs(t, err, ErrInvalidVT)
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	s, c := newTestClient(t)
	require.NoError(t, c.CreateQueue(ctx, "q", QueueAttributes{}))

	id, err := c.SendMessage(ctx, "q", "body")
	require.NoError(t, err)

	affected, err := c.DeleteMessage(ctx, "q", id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.Equal(t, "", s.HGet("rsmq:q:Q", id))

	affected, err = c.DeleteMessage(ctx, "q", id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestNamespace(t *testing.T) {
	ctx := context.Background()
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	c := New(redis.NewClient(&redis.Options{Addr: s.Addr()}), WithNamespace("commonmq"))

	require.NoError(t, c.CreateQueue(ctx, "q", QueueAttributes{}))
	assert.True(t, s.Exists("commonmq:q:Q"))
}
