package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/4Science/mill/internal/workman"
)

// taskMessage is the wire shape of a task on the queue.
type taskMessage struct {
	Type       workman.TaskType  `json:"type"`
	Properties map[string]string `json:"properties"`
}

// SQSQueue is a TaskQueue over an Amazon SQS queue. Visibility timeout is
// configured on the queue itself; Requeue zeroes a message's visibility so
// the next receive redelivers it immediately.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	waitTime int32
	log      *slog.Logger
}

// NewSQSQueue resolves the queue URL by name using the default AWS
// credential chain.
func NewSQSQueue(ctx context.Context, queueName string) (*SQSQueue, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := sqs.NewFromConfig(cfg)
	out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve queue %s: %w", queueName, err)
	}
	return &SQSQueue{
		client:   client,
		queueURL: *out.QueueUrl,
		waitTime: 10,
		log:      slog.With("component", "sqs-queue", "queue", queueName),
	}, nil
}

// Take implements TaskQueue.
func (q *SQSQueue) Take(ctx context.Context) (*workman.Task, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     q.waitTime,
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, workman.ErrNoTask
	}
	msg := out.Messages[0]

	var tm taskMessage
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &tm); err != nil {
		// Undecodable messages can never succeed; drop them.
		q.log.Error("dropping undecodable message", "error", err)
		if _, derr := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); derr != nil {
			q.log.Error("failed to delete undecodable message", "error", derr)
		}
		return nil, workman.ErrNoTask
	}

	return &workman.Task{
		Type:       tm.Type,
		Properties: tm.Properties,
		Handle:     aws.ToString(msg.ReceiptHandle),
	}, nil
}

// Send enqueues a task.
func (q *SQSQueue) Send(ctx context.Context, task *workman.Task) error {
	body, err := json.Marshal(taskMessage{Type: task.Type, Properties: task.Properties})
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Delete implements TaskQueue.
func (q *SQSQueue) Delete(ctx context.Context, task *workman.Task) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(task.Handle),
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// Requeue implements TaskQueue.
func (q *SQSQueue) Requeue(ctx context.Context, task *workman.Task) error {
	_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(task.Handle),
		VisibilityTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("change message visibility: %w", err)
	}
	return nil
}
