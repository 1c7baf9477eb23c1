package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
)

const (
	attrReceiveCount = "ApproximateReceiveCount"
	attrFirstReceive = "ApproximateFirstReceiveTimestamp"
)

var newSQSAPI = func(cfg Config, conn SQSDescriptor) (sqsiface.SQSAPI, error) {
	awsCfg := &aws.Config{
		Region: aws.String(conn.Region),
	}
	if cfg.CredentialsFile != "" || cfg.CredentialsProfile != "" {
		awsCfg.Credentials = credentials.NewSharedCredentials(cfg.CredentialsFile, cfg.CredentialsProfile)
	}
	if cfg.Retries > 0 {
		awsCfg.MaxRetries = aws.Int(cfg.Retries)
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	ssn, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	return sqs.New(ssn), nil
}

// AWSQueue implementation
type AWSQueue struct {
	QueueURL           string
	BadMessageQueueURL string

	queue           sqsiface.SQSAPI
	receipts        *receiptStore
	pollInterval    time.Duration
	waitTimeSeconds int64
}

// InitAWSQueue ...
func InitAWSQueue(cfg Config) (Client, error) {
	cfg = cfg.withDefaults()
	conn, err := ParseSQSURL(cfg.Queue)
	if err != nil {
		return nil, err
	}
	q := &AWSQueue{
		QueueURL:        conn.Address(),
		receipts:        newReceiptStore(cfg.ReceiptTTL),
		pollInterval:    cfg.PollInterval,
		waitTimeSeconds: cfg.WaitTimeSeconds,
	}
	if cfg.BadMessageQueue != "" {
		bad, err := ParseSQSURL(cfg.BadMessageQueue)
		if err != nil {
			return nil, err
		}
		if err := conn.compatible(bad); err != nil {
			return nil, err
		}
		q.BadMessageQueueURL = bad.Address()
	}
	if q.queue, err = newSQSAPI(cfg, conn); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"event": "init_queue",
		"queue": "aws_sqs",
	}).Debug(q.QueueURL)
	return q, nil
}

func (q *AWSQueue) send(ctx context.Context, queueURL, body string) (string, error) {
	msg := &sqs.SendMessageInput{
		MessageBody: aws.String(body),     // Required
		QueueUrl:    aws.String(queueURL), // Required
	}
	sendResponse, err := q.queue.SendMessageWithContext(ctx, msg)
	if err != nil {
		return "", err
	}
	id := aws.StringValue(sendResponse.MessageId)
	log.WithFields(log.Fields{
		"event": "send_message",
		"queue": "aws_sqs",
	}).Debug(id)
	return id, nil
}

// Send ...
func (q *AWSQueue) Send(ctx context.Context, body string) (string, error) {
	return q.send(ctx, q.QueueURL, body)
}

// Receive ...
func (q *AWSQueue) Receive(ctx context.Context) (*Message, error) {
	return poll(ctx, q.pollInterval, q.receiveOnce)
}

func (q *AWSQueue) receiveOnce(ctx context.Context) (*Message, error) {
	receivedMsg := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.QueueURL),
		MaxNumberOfMessages: aws.Int64(1),
		AttributeNames:      aws.StringSlice([]string{attrReceiveCount, attrFirstReceive}),
	}
	if q.waitTimeSeconds > 0 {
		receivedMsg.WaitTimeSeconds = aws.Int64(q.waitTimeSeconds)
	}
	receiveResponse, err := q.queue.ReceiveMessageWithContext(ctx, receivedMsg)
	if err != nil {
		return nil, err
	}
	if receiveResponse == nil || len(receiveResponse.Messages) == 0 {
		return nil, nil
	}
	received := receiveResponse.Messages[0]
	msg := &Message{
		ID:   aws.StringValue(received.MessageId),
		Body: aws.StringValue(received.Body),
	}
	if rc, err := strconv.Atoi(aws.StringValue(received.Attributes[attrReceiveCount])); err == nil {
		msg.ReceiveCount = rc
	}
	if fr, err := strconv.ParseInt(aws.StringValue(received.Attributes[attrFirstReceive]), 10, 64); err == nil {
		msg.FirstReceived = time.Unix(0, fr*int64(time.Millisecond))
	}
	q.receipts.put(msg.ID, aws.StringValue(received.ReceiptHandle))
	log.WithFields(log.Fields{
		"event": "receive_message",
		"queue": "aws_sqs",
	}).Debug(msg.ID)
	return msg, nil
}

func (q *AWSQueue) receipt(id string) (string, error) {
	handle, ok := q.receipts.get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoReceipt, id)
	}
	return handle, nil
}

// ExtendVisibilityTimeout ...
func (q *AWSQueue) ExtendVisibilityTimeout(ctx context.Context, id string, seconds int) error {
	handle, err := q.receipt(id)
	if err != nil {
		return err
	}
	_, err = q.queue.ChangeMessageVisibilityWithContext(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.QueueURL),
		ReceiptHandle:     aws.String(handle),
		VisibilityTimeout: aws.Int64(int64(seconds)),
	})
	return err
}

// Delete ...
func (q *AWSQueue) Delete(ctx context.Context, id string) error {
	handle, err := q.receipt(id)
	if err != nil {
		return err
	}
	deleteMsg := &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.QueueURL),
		ReceiptHandle: aws.String(handle),
	}
	if _, err := q.queue.DeleteMessageWithContext(ctx, deleteMsg); err != nil {
		return err
	}
	q.receipts.remove(id, handle)
	log.WithFields(log.Fields{
		"event": "delete_message",
		"queue": "aws_sqs",
	}).Debug(id)
	return nil
}

// BadMessage ...
func (q *AWSQueue) BadMessage(ctx context.Context, id, body string) (string, error) {
	if q.BadMessageQueueURL == "" {
		return "", ErrNoBadMessageQueue
	}
	// Without a receipt the delete can't succeed, so don't duplicate the message.
	if _, err := q.receipt(id); err != nil {
		return "", err
	}
	return moveToBadMessageQueue(id,
		func() (string, error) {
			return q.send(ctx, q.BadMessageQueueURL, body)
		},
		func() error {
			return q.Delete(ctx, id)
		},
	)
}

// Close stops the receipt janitor. The SQS client holds no connections.
func (q *AWSQueue) Close() error {
	q.receipts.stop()
	return nil
}
