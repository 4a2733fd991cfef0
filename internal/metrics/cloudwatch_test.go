package metrics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdm/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func dims(d []cwtypes.Dimension) map[string]string {
	out := make(map[string]string, len(d))
	for _, dim := range d {
		out[*dim.Name] = *dim.Value
	}
	return out
}

func TestCloudWatchMetrics_RecordEvent(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "", "fdm-events", nil)

	m.RecordEvent(context.Background(), types.ResultDuplicate, 250*time.Millisecond)

	require.Len(t, cw.calls, 1)
	input := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, *input.Namespace)
	require.Len(t, input.MetricData, 2)

	count := input.MetricData[0]
	assert.Equal(t, types.MetricEventProcessed, *count.MetricName)
	assert.Equal(t, 1.0, *count.Value)
	assert.Equal(t, cwtypes.StandardUnitCount, count.Unit)
	assert.Equal(t, map[string]string{
		types.DimQueue:  "fdm-events",
		types.DimResult: "duplicate",
	}, dims(count.Dimensions))

	latency := input.MetricData[1]
	assert.Equal(t, types.MetricEventLatency, *latency.MetricName)
	assert.Equal(t, 250.0, *latency.Value)
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, latency.Unit)
	assert.Equal(t, map[string]string{types.DimQueue: "fdm-events"}, dims(latency.Dimensions))
}

func TestCloudWatchMetrics_QueueLagClampsNegative(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "Custom", "q", nil)

	m.RecordQueueLag(context.Background(), -5*time.Second)
	m.RecordQueueLag(context.Background(), 3*time.Second)

	require.Len(t, cw.calls, 2)
	assert.Equal(t, "Custom", *cw.calls[0].Namespace)
	assert.Equal(t, 0.0, *cw.calls[0].MetricData[0].Value)
	assert.Equal(t, 3000.0, *cw.calls[1].MetricData[0].Value)
	assert.Equal(t, types.MetricEventQueueLag, *cw.calls[1].MetricData[0].MetricName)
}

func TestCloudWatchMetrics_RecordBatch(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "", "q", nil)

	m.RecordBatch(context.Background(), 7)

	require.Len(t, cw.calls, 1)
	assert.Equal(t, types.MetricPollBatchSize, *cw.calls[0].MetricData[0].MetricName)
	assert.Equal(t, 7.0, *cw.calls[0].MetricData[0].Value)
}

func TestCloudWatchMetrics_ErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	m := NewCloudWatchMetrics(cw, "", "q", logger)

	assert.NotPanics(t, func() {
		m.RecordEvent(context.Background(), types.ResultProcessed, time.Millisecond)
	})
	assert.Contains(t, buf.String(), "failed to record event metric")
	assert.Contains(t, buf.String(), "throttled")
}

func TestNoop(t *testing.T) {
	var m PipelineMetrics = Noop{}
	assert.NotPanics(t, func() {
		m.RecordEvent(context.Background(), types.ResultFailed, time.Second)
		m.RecordQueueLag(context.Background(), time.Second)
		m.RecordBatch(context.Background(), 1)
	})
}
