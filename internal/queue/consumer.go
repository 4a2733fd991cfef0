package queue

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"fdm/internal/metrics"
	"fdm/internal/types"
)

// SQSReceiver abstracts the SQS operations the consumer needs.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// EventProcessor runs one message body through the event pipeline.
type EventProcessor interface {
	Process(ctx context.Context, body string) (types.ProcessResult, error)
}

// ConsumerSettings configures polling.
type ConsumerSettings struct {
	QueueURL        string
	MaxMessages     int32
	WaitTime        time.Duration
	PollingInterval time.Duration
}

// Consumer long-polls the events queue. Each cycle receives a batch,
// processes its messages one at a time and deletes those that succeed. The
// next cycle is scheduled after PollingInterval whatever the outcome.
type Consumer struct {
	client    SQSReceiver
	processor EventProcessor
	metrics   metrics.PipelineMetrics
	settings  ConsumerSettings
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup
}

// NewConsumer creates a Consumer. A nil logger falls back to slog.Default()
// and nil metrics to metrics.Noop.
func NewConsumer(client SQSReceiver, processor EventProcessor, m metrics.PipelineMetrics, settings ConsumerSettings, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Noop{}
	}
	if settings.MaxMessages <= 0 || settings.MaxMessages > 10 {
		settings.MaxMessages = 10
	}
	return &Consumer{
		client:    client,
		processor: processor,
		metrics:   m,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
}

// Start begins polling immediately. Cancelling ctx aborts an in-progress
// receive but never an in-flight batch; use Stop to shut down.
func (c *Consumer) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.stopped = false
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Starting event consumer",
		"queue_url", c.settings.QueueURL,
		"max_messages", c.settings.MaxMessages,
		"wait_time", c.settings.WaitTime.String(),
		"polling_interval", c.settings.PollingInterval.String(),
	)
	c.schedule(0)
}

// Stop prevents further cycles and waits for the in-flight batch to finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.timer != nil && c.timer.Stop() {
		c.wg.Done()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("Event consumer stopped")
}

func (c *Consumer) schedule(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.wg.Add(1)
	c.timer = time.AfterFunc(delay, func() {
		defer c.wg.Done()
		c.Poll(c.ctx)
		if c.ctx.Err() == nil {
			c.schedule(c.settings.PollingInterval)
		}
	})
}

// Poll runs one receive-and-process cycle and returns the number of messages
// received. Receive failures are logged, never returned.
func (c *Consumer) Poll(ctx context.Context) int {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(c.settings.QueueURL),
		MaxNumberOfMessages:   c.settings.MaxMessages,
		WaitTimeSeconds:       int32(c.settings.WaitTime / time.Second),
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []sqsTypes.MessageSystemAttributeName{
			sqsTypes.MessageSystemAttributeNameSentTimestamp,
		},
	})
	if err != nil {
		if ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "Error polling for event messages",
				"queue_url", c.settings.QueueURL,
				"error", err.Error(),
			)
		}
		return 0
	}

	// The batch finishes even if polling is being shut down.
	batchCtx := context.WithoutCancel(ctx)
	c.metrics.RecordBatch(batchCtx, len(out.Messages))
	for _, msg := range out.Messages {
		c.handle(batchCtx, msg)
	}
	return len(out.Messages)
}

func (c *Consumer) handle(ctx context.Context, msg sqsTypes.Message) {
	messageID := aws.ToString(msg.MessageId)
	logger := c.logger.With("message_id", messageID)
	ctx = types.WithLogger(ctx, logger)
	start := c.now()

	if sent, ok := sentTimestamp(msg); ok {
		c.metrics.RecordQueueLag(ctx, start.Sub(sent))
	}

	result, err := c.processor.Process(ctx, aws.ToString(msg.Body))
	c.metrics.RecordEvent(ctx, result, c.now().Sub(start))
	if err != nil {
		logger.ErrorContext(ctx, "Unable to process event",
			"error", err.Error(),
			"error_code", string(types.CodeOf(err)),
		)
		return
	}

	_, err = c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.settings.QueueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Unable to delete event message",
			"error", err.Error(),
		)
		return
	}
	logger.DebugContext(ctx, "Event message handled", "result", string(result))
}

// sentTimestamp reads the SentTimestamp system attribute (epoch millis).
func sentTimestamp(msg sqsTypes.Message) (time.Time, bool) {
	raw, ok := msg.Attributes[string(sqsTypes.MessageSystemAttributeNameSentTimestamp)]
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
