// Package handlers contains the HTTP handler implementations for the
// notification data API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fdm/internal/core"
	"fdm/internal/types"
)

// MessageReader is the read side of the message projection. Both the Postgres
// repository and the SQLite store satisfy it.
type MessageReader interface {
	List(ctx context.Context, filter types.MessageFilter) ([]*types.Message, error)
	Get(ctx context.Context, correlationID string, filter types.MessageFilter) (*types.Message, error)
}

// MessageHandler serves the message aggregate endpoints.
type MessageHandler struct {
	reader    MessageReader
	validator *core.Validator
	logger    *slog.Logger
}

// NewMessageHandler creates a MessageHandler. A nil logger falls back to
// slog.Default().
func NewMessageHandler(reader MessageReader, val *core.Validator, logger *slog.Logger) *MessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator()
	}
	return &MessageHandler{
		reader:    reader,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the message endpoints onto the v1 router.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Route("/messages", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{correlationId}", h.HandleGet)
	})
}

// messageQuery holds the decoded query string shared by both endpoints.
type messageQuery struct {
	CRN            *int64 `query:"crn" validate:"omitempty,gte=1"`
	SBI            *int64 `query:"sbi" validate:"omitempty,gte=1"`
	IncludeContent bool   `query:"includeContent"`
	IncludeEvents  bool   `query:"includeEvents"`
}

func (q messageQuery) filter() types.MessageFilter {
	return types.MessageFilter{
		CRN:            q.CRN,
		SBI:            q.SBI,
		IncludeContent: q.IncludeContent,
		IncludeEvents:  q.IncludeEvents,
	}
}

// eventView exposes only the event type; store ids stay internal.
type eventView struct {
	Type string `json:"type"`
}

// messageView is the API representation of a message aggregate.
type messageView struct {
	CorrelationID string      `json:"correlationId"`
	CRN           *int64      `json:"crn,omitempty"`
	SBI           *int64      `json:"sbi,omitempty"`
	Recipient     *string     `json:"recipient,omitempty"`
	Subject       *string     `json:"subject,omitempty"`
	Body          *string     `json:"body,omitempty"`
	Status        string      `json:"status"`
	Created       time.Time   `json:"created"`
	LastUpdated   time.Time   `json:"lastUpdated"`
	Events        []eventView `json:"events,omitempty"`
}

func toView(m *types.Message) messageView {
	v := messageView{
		CorrelationID: m.CorrelationID,
		CRN:           m.CRN,
		SBI:           m.SBI,
		Recipient:     m.Recipient,
		Subject:       m.Subject,
		Body:          m.Body,
		Status:        m.Status,
		Created:       m.Created.UTC(),
		LastUpdated:   m.LastUpdated.UTC(),
	}
	if m.Events != nil {
		v.Events = make([]eventView, len(m.Events))
		for i, e := range m.Events {
			v.Events[i] = eventView{Type: e.Type}
		}
	}
	return v
}

// HandleList handles GET /api/v1/messages.
func (h *MessageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	msgs, err := h.reader.List(r.Context(), q.filter())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	views := make([]messageView, len(msgs))
	for i, m := range msgs {
		views[i] = toView(m)
	}
	core.Data(w, r, map[string]any{"messages": views})
}

// HandleGet handles GET /api/v1/messages/{correlationId}.
func (h *MessageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	id := chi.URLParam(r, "correlationId")
	msg, err := h.reader.Get(r.Context(), id, q.filter())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, map[string]any{"message": toView(msg)})
}

func (h *MessageHandler) parseQuery(r *http.Request) (messageQuery, error) {
	values := r.URL.Query()
	var q messageQuery
	var err error

	if q.CRN, err = parseOptionalInt(values.Get("crn"), "crn"); err != nil {
		return q, err
	}
	if q.SBI, err = parseOptionalInt(values.Get("sbi"), "sbi"); err != nil {
		return q, err
	}
	if q.IncludeContent, err = parseFlag(values.Get("includeContent"), "includeContent"); err != nil {
		return q, err
	}
	if q.IncludeEvents, err = parseFlag(values.Get("includeEvents"), "includeEvents"); err != nil {
		return q, err
	}
	return q, h.validator.ValidateQuery(q)
}

func parseOptionalInt(raw, name string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalidParam(name, "must be an integer", err)
	}
	return &n, nil
}

func parseFlag(raw, name string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, invalidParam(name, "must be true or false", err)
	}
	return b, nil
}

func invalidParam(name, reason string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationInvalidQuery,
		"Invalid query parameters: "+name+" "+reason, err).
		WithDetails(map[string]any{"fields": map[string]any{name: reason}})
}
