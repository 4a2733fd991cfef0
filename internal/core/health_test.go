package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProbe struct {
	name string
	err  error
	hang bool
}

func (p stubProbe) Name() string { return p.name }

func (p stubProbe) Check(ctx context.Context) error {
	if p.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubQueueAttributes struct {
	input *sqs.GetQueueAttributesInput
	err   error
}

func (s *stubQueueAttributes) GetQueueAttributes(_ context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	s.input = in
	if s.err != nil {
		return nil, s.err
	}
	return &sqs.GetQueueAttributesOutput{}, nil
}

func runHealth(t *testing.T, probes ...HealthProbe) (int, healthResponse) {
	t.Helper()
	s := newTestServer(t, testConfig())
	s.HealthProbes = probes

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHandleHealth_NoProbes(t *testing.T) {
	code, resp := runHealth(t)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Empty(t, resp.Components)
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	code, resp := runHealth(t, StoreProbe{Store: stubPinger{}}, stubProbe{name: "queue"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["store"].Status)
	assert.Equal(t, "healthy", resp.Components["queue"].Status)
}

func TestHandleHealth_FailingProbe(t *testing.T) {
	code, resp := runHealth(t,
		StoreProbe{Store: stubPinger{err: errors.New("connection refused")}},
		stubProbe{name: "queue"},
	)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["store"].Status)
	assert.Contains(t, resp.Components["store"].Message, "connection refused")
	assert.Equal(t, "healthy", resp.Components["queue"].Status)
}

func TestHandleHealth_TimedOutProbe(t *testing.T) {
	code, resp := runHealth(t, stubProbe{name: "slow", hang: true})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", resp.Components["slow"].Status)
}

func TestQueueProbe(t *testing.T) {
	client := &stubQueueAttributes{}
	p := QueueProbe{Client: client, QueueURL: "http://localhost:4566/000000000000/fdm-events"}

	assert.Equal(t, "queue", p.Name())
	require.NoError(t, p.Check(context.Background()))
	require.NotNil(t, client.input)
	assert.Equal(t, "http://localhost:4566/000000000000/fdm-events", *client.input.QueueUrl)

	client.err = errors.New("no such queue")
	assert.ErrorContains(t, p.Check(context.Background()), "no such queue")
}
