package simulate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fdm/internal/events"
	"fdm/internal/types"
)

// MaxRepetitions bounds a single simulation request.
const MaxRepetitions = 100

// EventPublisher sends one event to the events queue.
type EventPublisher interface {
	Publish(ctx context.Context, event map[string]any) error
}

// Summary reports what a simulation sent.
type Summary struct {
	Scenarios   int `json:"scenarios"`
	Repetitions int `json:"repetitions"`
}

// Simulator publishes scenario events as if they came from the comms service.
type Simulator struct {
	publisher EventPublisher
	clock     types.Clock
	newID     types.IDGenerator
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewSimulator creates a Simulator. A nil logger falls back to slog.Default().
func NewSimulator(publisher EventPublisher, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		publisher: publisher,
		clock:     types.RealClock{},
		newID:     uuid.NewString,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Simulate publishes the events of scenario, or of every scenario when it is
// empty, repetitions times. Each published event gets a fresh id and the
// current time so that repeated runs are not deduplicated.
func (s *Simulator) Simulate(ctx context.Context, scenario string, repetitions int) (*Summary, error) {
	if repetitions < 1 || repetitions > MaxRepetitions {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidQuery,
			fmt.Sprintf("repetitions must be between 1 and %d", MaxRepetitions), nil)
	}

	paths := []string{scenario}
	if scenario == "" {
		paths = paths[:0]
		for _, info := range ListScenarios() {
			paths = append(paths, info.Path)
		}
	} else if _, err := GetScenario(scenario); err != nil {
		return nil, err
	}

	for i := 1; i <= repetitions; i++ {
		for _, path := range paths {
			scenarioEvents, err := GetScenario(path)
			if err != nil {
				return nil, err
			}
			for _, event := range scenarioEvents {
				event["id"] = s.newID()
				event["time"] = events.FormatTime(s.clock.Now())
				if err := s.publisher.Publish(ctx, event); err != nil {
					return nil, types.NewAppError(types.ErrCodeUpstreamQueue, "failed to publish simulated event", err)
				}
				s.logger.InfoContext(ctx, "Simulating event",
					"event_id", event["id"],
					"event_type", event["type"],
					"scenario", path,
					"repetition", i,
				)
			}
		}
	}

	return &Summary{Scenarios: len(paths), Repetitions: repetitions}, nil
}

// Replay publishes the events of the scenario at path unchanged, waiting
// delay between consecutive events. It returns the number of events sent.
func (s *Simulator) Replay(ctx context.Context, path string, delay time.Duration) (int, error) {
	scenarioEvents, err := GetScenario(path)
	if err != nil {
		return 0, err
	}

	for i, event := range scenarioEvents {
		if i > 0 && delay > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				return i, err
			}
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			return i, types.NewAppError(types.ErrCodeUpstreamQueue, "failed to publish scenario event", err)
		}
		s.logger.InfoContext(ctx, "Sent event",
			"event_id", event["id"],
			"event_type", event["type"],
			"scenario", path,
			"position", i+1,
			"total", len(scenarioEvents),
		)
	}
	return len(scenarioEvents), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
