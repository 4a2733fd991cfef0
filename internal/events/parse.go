package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"fdm/internal/types"
)

// RawEvent is a decoded event before classification and validation. Numbers
// are kept as json.Number so identifiers such as crn survive unchanged.
type RawEvent map[string]any

// relayMessageField carries the JSON-encoded event in SNS-to-SQS envelopes.
const relayMessageField = "Message"

// ParseEvent unwraps a queue message body into its canonical event.
//
// A body with a non-null "Message" property is a relay envelope and the
// property must be a string holding a JSON object. Otherwise the body itself
// is the event, so {"Message": null} is returned as-is.
func ParseEvent(body string) (RawEvent, error) {
	outer, err := decodeObject([]byte(body))
	if err != nil {
		return nil, types.NewParseError("queue message body is not a JSON object", err)
	}

	wrapped, ok := outer[relayMessageField]
	if !ok || wrapped == nil {
		return outer, nil
	}

	inner, ok := wrapped.(string)
	if !ok {
		return nil, types.NewParseError("relay envelope Message must be a JSON string", nil)
	}

	event, err := decodeObject([]byte(inner))
	if err != nil {
		return nil, types.NewParseError("relay envelope Message is not a JSON object", err)
	}
	return event, nil
}

var errNotObject = errors.New("expected a JSON object")

func decodeObject(data []byte) (RawEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotObject
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return RawEvent(obj), nil
}

// String returns the value at key when it is a string.
func (e RawEvent) String(key string) (string, bool) {
	s, ok := e[key].(string)
	return s, ok
}

// Lookup resolves a dotted path such as "data.content.subject". The second
// result is false when any segment is missing or a parent is not an object.
func (e RawEvent) Lookup(path ...string) (any, bool) {
	var current any = map[string]any(e)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
