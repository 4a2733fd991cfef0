package events

import (
	"encoding/json"

	"fdm/internal/types"
)

// ToEvent converts a validated raw event into its stored form.
func ToEvent(raw RawEvent) (*types.Event, error) {
	id, _ := raw.String("id")
	source, _ := raw.String("source")
	specVersion, _ := raw.String("specversion")
	eventType, _ := raw.String("type")
	timeStr, _ := raw.String("time")

	eventTime, err := ParseTime(timeStr)
	if err != nil {
		return nil, types.NewValidationError(`"time" must be a valid date`, []string{err.Error()})
	}

	event := &types.Event{
		ID:          id,
		Source:      source,
		SpecVersion: specVersion,
		Type:        eventType,
		Time:        eventTime,
	}
	if s, ok := raw.String("subject"); ok {
		event.Subject = &s
	}
	if s, ok := raw.String("datacontenttype"); ok {
		event.DataContentType = &s
	}
	if data, ok := raw["data"]; ok {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, types.NewParseError("event data cannot be encoded", err)
		}
		event.Data = encoded
	}
	return event, nil
}

// BuildMessageUpdate derives the aggregate delta carried by a validated
// message event. Fields absent from the payload stay nil so the store leaves
// the stored values untouched.
func BuildMessageUpdate(event *types.Event, raw RawEvent) *types.MessageUpdate {
	update := &types.MessageUpdate{
		Event:  types.EventRef{ID: event.Key(), Type: event.Type},
		Status: StatusFromType(event.Type),
		Time:   event.Time,
	}
	if v, ok := raw.Lookup("data", "correlationId"); ok {
		update.CorrelationID, _ = v.(string)
	}
	update.Recipient = lookupString(raw, "data", "recipient")
	update.Subject = lookupString(raw, "data", "content", "subject")
	update.Body = lookupString(raw, "data", "content", "body")
	update.CRN = lookupInt(raw, "data", "crn")
	update.SBI = lookupInt(raw, "data", "sbi")
	return update
}

func lookupString(raw RawEvent, path ...string) *string {
	v, ok := raw.Lookup(path...)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func lookupInt(raw RawEvent, path ...string) *int64 {
	v, ok := raw.Lookup(path...)
	if !ok {
		return nil
	}
	n, ok := toInt64(v)
	if !ok {
		return nil
	}
	return &n
}

// ApplyMessageUpdate folds update into current and returns the result. A nil
// current starts a new aggregate. It is the reference semantics the stores
// implement as a single atomic statement: the event reference is always
// appended, and status, crn, sbi, subject, body and lastUpdated change only
// when the event is not older than the aggregate. Recipient is filled while
// empty.
func ApplyMessageUpdate(current *types.Message, update *types.MessageUpdate) *types.Message {
	if current == nil {
		return &types.Message{
			CorrelationID: update.CorrelationID,
			CRN:           update.CRN,
			SBI:           update.SBI,
			Recipient:     update.Recipient,
			Subject:       update.Subject,
			Body:          update.Body,
			Status:        update.Status,
			Created:       update.Time,
			LastUpdated:   update.Time,
			Events:        []types.EventRef{update.Event},
		}
	}

	next := *current
	next.Events = append(append([]types.EventRef(nil), current.Events...), update.Event)

	if next.Recipient == nil {
		next.Recipient = update.Recipient
	}

	if update.Time.Before(current.LastUpdated) {
		return &next
	}

	next.Status = update.Status
	next.LastUpdated = update.Time
	if update.CRN != nil {
		next.CRN = update.CRN
	}
	if update.SBI != nil {
		next.SBI = update.SBI
	}
	if update.Subject != nil {
		next.Subject = update.Subject
	}
	if update.Body != nil {
		next.Body = update.Body
	}
	return &next
}
