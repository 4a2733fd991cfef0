package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fdm/internal/core"
	"fdm/internal/simulate"
	"fdm/internal/types"
)

// Simulator publishes canned scenario events.
type Simulator interface {
	Simulate(ctx context.Context, scenario string, repetitions int) (*simulate.Summary, error)
}

// SimulationHandler serves the simulation trigger endpoint.
type SimulationHandler struct {
	simulator Simulator
	validator *core.Validator
	logger    *slog.Logger
}

// NewSimulationHandler creates a SimulationHandler. A nil simulator means
// simulation is disabled and requests are answered with 503.
func NewSimulationHandler(sim Simulator, val *core.Validator, logger *slog.Logger) *SimulationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator()
	}
	return &SimulationHandler{simulator: sim, validator: val, logger: logger}
}

// RegisterRoutes mounts the simulation endpoints onto the v1 router.
func (h *SimulationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/simulate/messages", h.HandleSimulate)
}

type simulateQuery struct {
	Scenario    string `query:"scenario"`
	Repetitions int    `query:"repetitions" validate:"min=1,max=100"`
}

// HandleSimulate handles POST /api/v1/simulate/messages.
func (h *SimulationHandler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	if h.simulator == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeUnavailableDisabled, "simulation is disabled", nil))
		return
	}

	values := r.URL.Query()
	q := simulateQuery{Scenario: values.Get("scenario"), Repetitions: 1}
	if raw := values.Get("repetitions"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			core.Error(w, r, invalidParam("repetitions", "must be an integer", err))
			return
		}
		q.Repetitions = n
	}
	if err := h.validator.ValidateQuery(q); err != nil {
		core.Error(w, r, err)
		return
	}

	summary, err := h.simulator.Simulate(r.Context(), q.Scenario, q.Repetitions)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "simulation published",
		"scenario", q.Scenario,
		"scenarios", summary.Scenarios,
		"repetitions", summary.Repetitions,
	)
	core.Data(w, r, map[string]any{"summary": summary})
}
