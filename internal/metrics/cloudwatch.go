package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"fdm/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics emits pipeline metrics to AWS CloudWatch.
//
// Metrics emitted:
//   - EventProcessed: Dims {Queue, Result}, one per message
//   - EventProcessingLatency: Dims {Queue}, milliseconds per message
//   - EventQueueLag: Dims {Queue}, time from SentTimestamp to processing
//   - PollBatchSize: Dims {Queue}, messages received per poll
var _ PipelineMetrics = (*CloudWatchMetrics)(nil)

type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	queue     string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
// An empty namespace falls back to types.MetricNamespace and a nil logger to
// slog.Default().
func NewCloudWatchMetrics(client CloudWatchClient, namespace, queue string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		queue:     queue,
		logger:    logger,
	}
}

// RecordEvent emits the processed count and latency for one message in a
// single PutMetricData call.
func (m *CloudWatchMetrics) RecordEvent(ctx context.Context, result types.ProcessResult, latency time.Duration) {
	m.put(ctx, "event",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricEventProcessed),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: append(m.queueDims(), cwtypes.Dimension{
				Name:  aws.String(types.DimResult),
				Value: aws.String(string(result)),
			}),
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricEventLatency),
			Value:      aws.Float64(float64(latency.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: m.queueDims(),
		},
	)
}

// RecordQueueLag emits the delay between enqueue and processing start.
// Negative lags caused by clock skew are clamped to zero.
func (m *CloudWatchMetrics) RecordQueueLag(ctx context.Context, lag time.Duration) {
	if lag < 0 {
		lag = 0
	}
	m.put(ctx, "queue lag", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricEventQueueLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: m.queueDims(),
	})
}

// RecordBatch emits the number of messages returned by one poll.
func (m *CloudWatchMetrics) RecordBatch(ctx context.Context, size int) {
	m.put(ctx, "batch size", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricPollBatchSize),
		Value:      aws.Float64(float64(size)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: m.queueDims(),
	})
}

func (m *CloudWatchMetrics) queueDims() []cwtypes.Dimension {
	return []cwtypes.Dimension{{
		Name:  aws.String(types.DimQueue),
		Value: aws.String(m.queue),
	}}
}

func (m *CloudWatchMetrics) put(ctx context.Context, what string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record "+what+" metric",
			"error", err.Error(),
			"queue", m.queue,
		)
	}
}
