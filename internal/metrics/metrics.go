// Package metrics records pipeline metrics to CloudWatch and exposes HTTP
// request metrics for Prometheus scraping.
package metrics

import (
	"context"
	"time"

	"fdm/internal/types"
)

// PipelineMetrics receives the outcome of consumer work. Implementations must
// not fail the caller: emission errors are logged and dropped.
type PipelineMetrics interface {
	RecordEvent(ctx context.Context, result types.ProcessResult, latency time.Duration)
	RecordQueueLag(ctx context.Context, lag time.Duration)
	RecordBatch(ctx context.Context, size int)
}

// Noop discards every metric. It is used when METRICS_ENABLED is false.
type Noop struct{}

var _ PipelineMetrics = Noop{}

func (Noop) RecordEvent(context.Context, types.ProcessResult, time.Duration) {}
func (Noop) RecordQueueLag(context.Context, time.Duration)                   {}
func (Noop) RecordBatch(context.Context, int)                                {}
