package types

import (
	"encoding/json"
	"time"
)

// EventCategory classifies an event type and selects the validation rules and
// aggregation logic applied to it.
type EventCategory string

const (
	// CategoryMessage covers the notification lifecycle events emitted by the
	// Single Front Door comms service.
	CategoryMessage EventCategory = "message"
)

// Event is the immutable, validated form of an inbound CloudEvent. Events are
// stored once under their composite key and never modified.
type Event struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	SpecVersion     string          `json:"specversion"`
	Type            string          `json:"type"`
	Time            time.Time       `json:"time"`
	Subject         *string         `json:"subject,omitempty"`
	DataContentType *string         `json:"datacontenttype,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// Key returns the storage identity of the event, "source:id". Redeliveries of
// the same event map to the same key.
func (e *Event) Key() string {
	return EventKey(e.Source, e.ID)
}

// EventKey builds the composite storage key for an event.
func EventKey(source, id string) string {
	return source + ":" + id
}

// EventRef is the compact reference to a stored Event kept on an aggregate.
type EventRef struct {
	ID   string `json:"_id"`
	Type string `json:"type"`
}

// Message is the per-correlation aggregate folded from message-category events.
type Message struct {
	CorrelationID string     `json:"correlationId"`
	CRN           *int64     `json:"crn,omitempty"`
	SBI           *int64     `json:"sbi,omitempty"`
	Recipient     *string    `json:"recipient,omitempty"`
	Subject       *string    `json:"subject,omitempty"`
	Body          *string    `json:"body,omitempty"`
	Status        string     `json:"status"`
	Created       time.Time  `json:"created"`
	LastUpdated   time.Time  `json:"lastUpdated"`
	Events        []EventRef `json:"events,omitempty"`
}

// MessageUpdate is the projection delta derived from one message event. Nil
// fields are absent from the event and never overwrite stored values.
type MessageUpdate struct {
	CorrelationID string
	Event         EventRef
	Status        string
	Time          time.Time
	CRN           *int64
	SBI           *int64
	Recipient     *string
	Subject       *string
	Body          *string
}

// MessageFilter selects and shapes aggregates returned by the projection
// reader.
type MessageFilter struct {
	CRN            *int64
	SBI            *int64
	IncludeContent bool
	IncludeEvents  bool
}

// SaveResult reports the outcome of recording one event.
type SaveResult struct {
	EventKey      string
	CorrelationID string
	// Created is true when the event opened a new aggregate.
	Created bool
}
