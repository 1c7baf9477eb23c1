package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/freundallein/commonmq/chassis/rsmq"
	"github.com/freundallein/commonmq/chassis/storage"
)

// callLog records backend calls in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// mockRSMQ is a mock implementation of rsmqAPI
type mockRSMQ struct {
	callLog
	sendMessageFunc      func(qname, message string) (string, error)
	receiveMessageFunc   func(qname string) (*rsmq.Message, error)
	changeVisibilityFunc func(qname, id string, vt int) (int64, error)
	deleteMessageFunc    func(qname, id string) (int64, error)
	quit                 bool
}

func (m *mockRSMQ) SendMessage(ctx context.Context, qname, message string) (string, error) {
	m.record("send %s %s", qname, message)
	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(qname, message)
	}
	return "", nil
}

func (m *mockRSMQ) ReceiveMessage(ctx context.Context, qname string) (*rsmq.Message, error) {
	m.record("receive %s", qname)
	if m.receiveMessageFunc != nil {
		return m.receiveMessageFunc(qname)
	}
	return nil, nil
}

func (m *mockRSMQ) ChangeMessageVisibility(ctx context.Context, qname, id string, vt int) (int64, error) {
	m.record("visibility %s %s %d", qname, id, vt)
	if m.changeVisibilityFunc != nil {
		return m.changeVisibilityFunc(qname, id, vt)
	}
	return 1, nil
}

func (m *mockRSMQ) DeleteMessage(ctx context.Context, qname, id string) (int64, error) {
	m.record("delete %s %s", qname, id)
	if m.deleteMessageFunc != nil {
		return m.deleteMessageFunc(qname, id)
	}
	return 1, nil
}

func (m *mockRSMQ) Quit() error {
	m.quit = true
	return nil
}

// stubRSMQ makes InitRSMQQueue use mock and returns the descriptors it was built with.
func stubRSMQ(t *testing.T, mock *mockRSMQ) *[]RSMQDescriptor {
	t.Helper()
	orig := newRSMQAPI
	conns := &[]RSMQDescriptor{}
	newRSMQAPI = func(cfg Config, conn RSMQDescriptor) rsmqAPI {
		*conns = append(*conns, conn)
		return mock
	}
	t.Cleanup(func() { newRSMQAPI = orig })
	return conns
}

// mockSQSClient is a mock implementation of the SQS client for testing
type mockSQSClient struct {
	sqsiface.SQSAPI
	callLog
	sendMessageFunc             func(params *sqs.SendMessageInput) (*sqs.SendMessageOutput, error)
	receiveMessageFunc          func(params *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error)
	changeMessageVisibilityFunc func(params *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error)
	deleteMessageFunc           func(params *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error)
}

func (m *mockSQSClient) SendMessageWithContext(ctx aws.Context, params *sqs.SendMessageInput, opts ...request.Option) (*sqs.SendMessageOutput, error) {
	m.record("send %s %s", aws.StringValue(params.QueueUrl), aws.StringValue(params.MessageBody))
	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(params)
	}
	return &sqs.SendMessageOutput{}, nil
}

func (m *mockSQSClient) ReceiveMessageWithContext(ctx aws.Context, params *sqs.ReceiveMessageInput, opts ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	m.record("receive %s", aws.StringValue(params.QueueUrl))
	if m.receiveMessageFunc != nil {
		return m.receiveMessageFunc(params)
	}
	return &sqs.ReceiveMessageOutput{}, nil
}

func (m *mockSQSClient) ChangeMessageVisibilityWithContext(ctx aws.Context, params *sqs.ChangeMessageVisibilityInput, opts ...request.Option) (*sqs.ChangeMessageVisibilityOutput, error) {
	m.record("visibility %s %s %d", aws.StringValue(params.QueueUrl), aws.StringValue(params.ReceiptHandle), aws.Int64Value(params.VisibilityTimeout))
	if m.changeMessageVisibilityFunc != nil {
		return m.changeMessageVisibilityFunc(params)
	}
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func (m *mockSQSClient) DeleteMessageWithContext(ctx aws.Context, params *sqs.DeleteMessageInput, opts ...request.Option) (*sqs.DeleteMessageOutput, error) {
	m.record("delete %s %s", aws.StringValue(params.QueueUrl), aws.StringValue(params.ReceiptHandle))
	if m.deleteMessageFunc != nil {
		return m.deleteMessageFunc(params)
	}
	return &sqs.DeleteMessageOutput{}, nil
}

func stubSQS(t *testing.T, mock *mockSQSClient) *[]SQSDescriptor {
	t.Helper()
	orig := newSQSAPI
	conns := &[]SQSDescriptor{}
	newSQSAPI = func(cfg Config, conn SQSDescriptor) (sqsiface.SQSAPI, error) {
		*conns = append(*conns, conn)
		return mock, nil
	}
	t.Cleanup(func() { newSQSAPI = orig })
	return conns
}

// mockRepository is a mock implementation of storage.MessageRepository
type mockRepository struct {
	callLog
	enqueueFunc       func(queue, body string) (int64, error)
	claimFunc         func(queue string, vt int) (*storage.Message, error)
	setVisibilityFunc func(queue string, id int64, vt int) (int64, error)
	deleteFunc        func(queue string, id int64) (int64, error)
	closed            bool
}

func (m *mockRepository) Enqueue(ctx context.Context, queue, body string) (int64, error) {
	m.record("enqueue %s %s", queue, body)
	if m.enqueueFunc != nil {
		return m.enqueueFunc(queue, body)
	}
	return 0, nil
}

func (m *mockRepository) Claim(ctx context.Context, queue string, vt int) (*storage.Message, error) {
	m.record("claim %s %d", queue, vt)
	if m.claimFunc != nil {
		return m.claimFunc(queue, vt)
	}
	return nil, nil
}

func (m *mockRepository) SetVisibility(ctx context.Context, queue string, id int64, vt int) (int64, error) {
	m.record("visibility %s %d %d", queue, id, vt)
	if m.setVisibilityFunc != nil {
		return m.setVisibilityFunc(queue, id, vt)
	}
	return 1, nil
}

func (m *mockRepository) Delete(ctx context.Context, queue string, id int64) (int64, error) {
	m.record("delete %s %d", queue, id)
	if m.deleteFunc != nil {
		return m.deleteFunc(queue, id)
	}
	return 1, nil
}

func (m *mockRepository) Close() {
	m.closed = true
}

func stubPG(t *testing.T, mock *mockRepository) *[]PGDescriptor {
	t.Helper()
	orig := newPGRepository
	conns := &[]PGDescriptor{}
	newPGRepository = func(ctx context.Context, cfg Config, conn PGDescriptor) (storage.MessageRepository, error) {
		*conns = append(*conns, conn)
		return mock, nil
	}
	t.Cleanup(func() { newPGRepository = orig })
	return conns
}
