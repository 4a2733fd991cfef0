// Package queue consumes notification events from SQS and publishes
// relay-wrapped events for simulation.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// RelayEnvelope is the notification wrapper a topic-to-queue subscription
// puts around a published event. The event itself travels as a JSON string in
// Message.
type RelayEnvelope struct {
	Type      string `json:"Type"`
	MessageID string `json:"MessageId"`
	Message   string `json:"Message"`
	Timestamp string `json:"Timestamp"`
}

// Publisher sends events to the events queue in relay format, exactly as
// they arrive from the upstream topic.
type Publisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	now      func() time.Time
}

// NewPublisher creates a Publisher for queueURL. A nil logger falls back to
// slog.Default().
func NewPublisher(client SQSSender, queueURL string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
	}
}

// Publish serializes event, wraps it in a RelayEnvelope and sends it.
func (p *Publisher) Publish(ctx context.Context, event map[string]any) error {
	inner, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal event: %w", err)
	}

	body, err := json.Marshal(RelayEnvelope{
		Type:      "Notification",
		MessageID: uuid.NewString(),
		Message:   string(inner),
		Timestamp: p.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("queue: failed to marshal envelope: %w", err)
	}

	eventType, _ := event["type"].(string)
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventType),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send event to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "Event published",
		"queue_url", p.queueURL,
		"event_id", event["id"],
		"event_type", eventType,
	)
	return nil
}
