// Package main is the entry point for the event consumer Lambda function.
//
// It runs the same parse, validate and store pipeline as the long-running
// poller, but receives its batches from the SQS event source mapping. Failed
// records are reported as batch item failures so that SQS redelivers only
// those messages.
package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"fdm/internal/config"
	"fdm/internal/db"
	pipeline "fdm/internal/events"
	"fdm/internal/metrics"
	"fdm/internal/queue"
	"fdm/internal/types"
)

// Handler holds the dependencies for the Lambda handler.
type Handler struct {
	processor queue.EventProcessor
	metrics   metrics.PipelineMetrics
	logger    *slog.Logger
	now       func() time.Time
}

// Handle processes an SQS batch. Each record is processed independently.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}
	h.metrics.RecordBatch(ctx, len(sqsEvent.Records))

	for _, record := range sqsEvent.Records {
		logger := h.logger.With("message_id", record.MessageId)
		msgCtx := types.WithLogger(ctx, logger)

		if sent, ok := sentTimestamp(record); ok {
			h.metrics.RecordQueueLag(msgCtx, h.now().Sub(sent))
		}

		start := h.now()
		result, err := h.processor.Process(msgCtx, record.Body)
		h.metrics.RecordEvent(msgCtx, result, h.now().Sub(start))
		if err != nil {
			logger.Error("Unable to process event",
				"error", err,
				"error_code", string(types.CodeOf(err)),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// sentTimestamp reads the SentTimestamp system attribute (epoch millis).
func sentTimestamp(record events.SQSMessage) (time.Time, bool) {
	raw, ok := record.Attributes["SentTimestamp"]
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("Event consumer Lambda initializing (cold start)")

	ctx := context.Background()
	cfg, err := config.LoadConfig(config.NewFileProvider())
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.Store)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error("Failed to apply schema", "error", err)
		os.Exit(1)
	}

	store := db.NewBreakerStore(db.NewEventStore(pool), db.BreakerSettings{
		Name:        "event-store",
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
		Interval:    cfg.Breaker.Interval,
	}, logger)

	var pipelineMetrics metrics.PipelineMetrics = metrics.Noop{}
	if cfg.Observability.MetricsEnabled {
		awsCfg, err := config.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			logger.Error("Failed to load AWS SDK config", "error", err)
			os.Exit(1)
		}
		pipelineMetrics = metrics.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace, cfg.AWS.EventsQueueURL, logger)
	}

	handler := &Handler{
		processor: pipeline.NewProcessor(store, logger),
		metrics:   pipelineMetrics,
		logger:    logger,
		now:       time.Now,
	}

	logger.Info("Event consumer Lambda initialized", "metrics_enabled", cfg.Observability.MetricsEnabled)
	lambda.Start(handler.Handle)
}
