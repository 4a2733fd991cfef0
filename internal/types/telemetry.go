package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricEventProcessed = "EventProcessed"
	MetricEventLatency   = "EventProcessingLatency"
	MetricEventQueueLag  = "EventQueueLag"
	MetricPollBatchSize  = "PollBatchSize"

	// Dimension Keys
	DimResult = "Result"
	DimQueue  = "Queue"

	// Metric Namespace
	MetricNamespace = "FDM"
)

// ProcessResult labels the outcome of running one queue message through the
// event pipeline.
type ProcessResult string

const (
	ResultProcessed ProcessResult = "processed"
	ResultDuplicate ProcessResult = "duplicate"
	ResultFailed    ProcessResult = "failed"
)
