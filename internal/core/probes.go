package core

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Pinger is satisfied by pgxpool.Pool and the SQLite store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreProbe reports whether the event store accepts connections.
type StoreProbe struct {
	Store Pinger
}

func (p StoreProbe) Name() string { return "store" }

func (p StoreProbe) Check(ctx context.Context) error {
	if err := p.Store.Ping(ctx); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

// QueueAttributesAPI is the subset of the SQS client used by QueueProbe.
type QueueAttributesAPI interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// QueueProbe reports whether the events queue is reachable.
type QueueProbe struct {
	Client   QueueAttributesAPI
	QueueURL string
}

func (p QueueProbe) Name() string { return "queue" }

func (p QueueProbe) Check(ctx context.Context) error {
	_, err := p.Client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(p.QueueURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return fmt.Errorf("queue attributes: %w", err)
	}
	return nil
}
