package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"fdm/internal/types"
)

// MessageWriter is the write side of a message event store.
type MessageWriter interface {
	SaveMessageEvent(ctx context.Context, event *types.Event, update *types.MessageUpdate) (*types.SaveResult, error)
}

// BreakerSettings tunes the storage circuit breaker.
type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
	Interval    time.Duration
}

// BreakerStore guards a MessageWriter with a circuit breaker. After
// MaxFailures consecutive storage failures it rejects writes with a
// StorageError until OpenTimeout elapses. Duplicate events do not count
// as failures.
type BreakerStore struct {
	next    MessageWriter
	breaker *gobreaker.CircuitBreaker[*types.SaveResult]
}

// NewBreakerStore wraps next. A nil logger falls back to slog.Default().
func NewBreakerStore(next MessageWriter, settings BreakerSettings, logger *slog.Logger) *BreakerStore {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker[*types.SaveResult](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, types.ErrDuplicateEvent)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Storage circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BreakerStore{next: next, breaker: cb}
}

// SaveMessageEvent forwards to the wrapped store unless the breaker is open.
func (s *BreakerStore) SaveMessageEvent(ctx context.Context, event *types.Event, update *types.MessageUpdate) (*types.SaveResult, error) {
	result, err := s.breaker.Execute(func() (*types.SaveResult, error) {
		return s.next.SaveMessageEvent(ctx, event, update)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, types.NewStorageError("event store unavailable", err)
	}
	return result, err
}

// State reports the breaker state.
func (s *BreakerStore) State() gobreaker.State {
	return s.breaker.State()
}

// Name identifies the breaker in the health report.
func (s *BreakerStore) Name() string { return "store_breaker" }

// Check fails while the breaker is open. Half-open counts as healthy.
func (s *BreakerStore) Check(context.Context) error {
	if st := s.State(); st == gobreaker.StateOpen {
		return fmt.Errorf("circuit %s is %s", s.breaker.Name(), st)
	}
	return nil
}
