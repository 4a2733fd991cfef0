package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the whole /health run. Checks still pending at
// the deadline are reported as timed out.
const healthCheckTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

var errCheckTimedOut = errors.New("health check timed out")

// HealthProbe is one dependency reported by /health: the event store, the
// store circuit breaker or the events queue.
type HealthProbe interface {
	Name() string
	// Check returns nil when the dependency is usable. It must honour ctx.
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every registered HealthProbe concurrently and answers 200
// when all pass, 503 otherwise.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: statusHealthy}
	if len(s.HealthProbes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	errs := runChecks(ctx, s.HealthProbes)

	resp.Components = make(map[string]componentStatus, len(s.HealthProbes))
	for i, p := range s.HealthProbes {
		c := componentStatus{Status: statusHealthy}
		if errs[i] != nil {
			c = componentStatus{Status: statusUnhealthy, Message: errs[i].Error()}
			resp.Status = statusUnhealthy
		}
		resp.Components[p.Name()] = c
	}

	code := http.StatusOK
	if resp.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	JSON(w, r, code, resp)
}

// runChecks returns one error per probe, in probe order. A check that has not
// returned when ctx is done gets errCheckTimedOut.
func runChecks(ctx context.Context, probes []HealthProbe) []error {
	type outcome struct {
		idx int
		err error
	}
	// Buffered so late checks never block after we stop reading.
	results := make(chan outcome, len(probes))
	for i, p := range probes {
		go func() {
			results <- outcome{idx: i, err: safeCheck(ctx, p)}
		}()
	}

	errs := make([]error, len(probes))
	for i := range errs {
		errs[i] = errCheckTimedOut
	}
	for pending := len(probes); pending > 0; pending-- {
		select {
		case o := <-results:
			errs[o.idx] = o.err
		case <-ctx.Done():
			return errs
		}
	}
	return errs
}

func safeCheck(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			err = fmt.Errorf("check panicked: %v", rvr)
		}
	}()
	return p.Check(ctx)
}
