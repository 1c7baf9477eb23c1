package queue

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collected by instrumented clients.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the queue collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commonmq",
			Name:      "operations_total",
			Help:      "Queue operations by protocol, operation and result.",
		}, []string{"protocol", "operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "commonmq",
			Name:      "operation_duration_seconds",
			Help:      "Queue operation latency. Receive includes time spent polling an empty queue.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"protocol", "operation"}),
	}
	for _, c := range []prometheus.Collector{m.operations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(protocol Protocol, operation string, start time.Time, err error) {
	result := "success"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "canceled"
	case err != nil:
		result = "error"
	}
	m.operations.WithLabelValues(string(protocol), operation, result).Inc()
	m.duration.WithLabelValues(string(protocol), operation).Observe(time.Since(start).Seconds())
}

type instrumentedClient struct {
	next     Client
	protocol Protocol
	metrics  *Metrics
}

// Instrument wraps client so every operation is counted and timed.
func Instrument(client Client, protocol Protocol, metrics *Metrics) Client {
	return &instrumentedClient{
		next:     client,
		protocol: protocol,
		metrics:  metrics,
	}
}

func (c *instrumentedClient) Send(ctx context.Context, body string) (string, error) {
	start := time.Now()
	id, err := c.next.Send(ctx, body)
	c.metrics.observe(c.protocol, "send", start, err)
	return id, err
}

func (c *instrumentedClient) Receive(ctx context.Context) (*Message, error) {
	start := time.Now()
	msg, err := c.next.Receive(ctx)
	c.metrics.observe(c.protocol, "receive", start, err)
	return msg, err
}

func (c *instrumentedClient) ExtendVisibilityTimeout(ctx context.Context, id string, seconds int) error {
	start := time.Now()
	err := c.next.ExtendVisibilityTimeout(ctx, id, seconds)
	c.metrics.observe(c.protocol, "extend_visibility_timeout", start, err)
	return err
}

func (c *instrumentedClient) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := c.next.Delete(ctx, id)
	c.metrics.observe(c.protocol, "delete", start, err)
	return err
}

func (c *instrumentedClient) BadMessage(ctx context.Context, id, body string) (string, error) {
	start := time.Now()
	newID, err := c.next.BadMessage(ctx, id, body)
	c.metrics.observe(c.protocol, "bad_message", start, err)
	return newID, err
}

func (c *instrumentedClient) Close() error {
	return c.next.Close()
}
