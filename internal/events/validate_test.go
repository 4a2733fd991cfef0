package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdm/internal/types"
)

const cloudEventPayload = `{
	"specversion": "1.0",
	"type": "uk.gov.defra.fcp.notification.event",
	"source": "fcp-sfd-comms",
	"id": "f39deb76-bd15-4532-8efb-92783800847e",
	"time": "2025-10-19T12:34:56Z",
	"subject": "New Notification Event",
	"datacontenttype": "text/json",
	"data": {"message": "This is a test notification event"}
}`

const messageEventPayload = `{
	"id": "550e8400-e29b-41d4-a716-446655440001",
	"source": "fcp-sfd-comms",
	"specversion": "1.0",
	"type": "uk.gov.fcp.sfd.notification.received",
	"datacontenttype": "application/json",
	"time": "2023-10-17T14:48:01.000Z",
	"data": {
		"correlationId": "79389915-7275-457a-b8ca-8bf206b2e67b",
		"crn": 1234567890,
		"sbi": 123456789,
		"recipient": "farmer@example.com",
		"personalisation": {"caseNumber": "ACC123456789"}
	}
}`

func mustParse(t *testing.T, body string) RawEvent {
	t.Helper()
	raw, err := ParseEvent(body)
	require.NoError(t, err)
	return raw
}

func validationViolations(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, types.ErrCodeValidationEvent, appErr.Code)
	violations, ok := appErr.Details["violations"].([]string)
	require.True(t, ok)
	return violations
}

// validateEnvelope checks only the category-independent rules.
func validateEnvelope(v *Validator, raw RawEvent) error {
	return newValidationError(v.check(raw, envelopeRules))
}

func TestValidateEnvelope_Valid(t *testing.T) {
	assert.NoError(t, validateEnvelope(NewValidator(), mustParse(t, cloudEventPayload)))
}

func TestValidateEnvelope_RequiredFields(t *testing.T) {
	v := NewValidator()

	for _, field := range []string{"specversion", "type", "source", "id", "time"} {
		t.Run(field, func(t *testing.T) {
			for name, mutate := range map[string]func(RawEvent){
				"missing": func(e RawEvent) { delete(e, field) },
				"null":    func(e RawEvent) { e[field] = nil },
				"empty":   func(e RawEvent) { e[field] = "" },
				"number":  func(e RawEvent) { e[field] = 7 },
			} {
				event := mustParse(t, cloudEventPayload)
				mutate(event)

				err := validateEnvelope(v, event)
				assert.Error(t, err, "%s %s should fail", name, field)
			}
		})
	}
}

func TestValidateEnvelope_FormatRules(t *testing.T) {
	v := NewValidator()

	event := mustParse(t, cloudEventPayload)
	event["id"] = "a-non-uuid"
	assert.Equal(t, []string{`"id" must be a valid UUID`}, validationViolations(t, validateEnvelope(v, event)))

	event = mustParse(t, cloudEventPayload)
	event["time"] = "a-non-date"
	assert.Equal(t, []string{`"time" must be a valid date`}, validationViolations(t, validateEnvelope(v, event)))

	event = mustParse(t, cloudEventPayload)
	event["id"] = "F39DEB76-BD15-4532-8EFB-92783800847E"
	assert.NoError(t, validateEnvelope(v, event), "upper case UUIDs are valid")
}

func TestValidateEnvelope_OptionalFields(t *testing.T) {
	v := NewValidator()

	for _, field := range []string{"subject", "datacontenttype"} {
		event := mustParse(t, cloudEventPayload)
		delete(event, field)
		assert.NoError(t, validateEnvelope(v, event), "missing %s is allowed", field)

		event = mustParse(t, cloudEventPayload)
		event[field] = nil
		assert.Error(t, validateEnvelope(v, event), "null %s is rejected", field)

		event = mustParse(t, cloudEventPayload)
		event[field] = ""
		assert.Error(t, validateEnvelope(v, event), "empty %s is rejected", field)
	}
}

func TestValidateEnvelope_DataIsUnconstrained(t *testing.T) {
	v := NewValidator()

	for name, mutate := range map[string]func(RawEvent){
		"missing": func(e RawEvent) { delete(e, "data") },
		"null":    func(e RawEvent) { e["data"] = nil },
		"empty":   func(e RawEvent) { e["data"] = "" },
	} {
		event := mustParse(t, cloudEventPayload)
		mutate(event)
		assert.NoError(t, validateEnvelope(v, event), "%s data", name)
	}
}

func TestValidateEnvelope_AllowsUnknownFields(t *testing.T) {
	event := mustParse(t, cloudEventPayload)
	event["dataschema"] = "https://example.com/schema"
	event["traceparent"] = "00-abc-def-01"

	assert.NoError(t, validateEnvelope(NewValidator(), event))
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	event := mustParse(t, messageEventPayload)
	delete(event, "specversion")
	event["id"] = "not-a-uuid"
	event["subject"] = ""
	data := event["data"].(map[string]any)
	delete(data, "correlationId")
	data["crn"] = "1234567890"

	err := NewValidator().Validate(event, types.CategoryMessage)

	violations := validationViolations(t, err)
	assert.Equal(t, []string{
		`"specversion" is required`,
		`"id" must be a valid UUID`,
		`"subject" must be a non-empty string`,
		`"data.correlationId" is required`,
		`"data.crn" must be a positive integer`,
	}, violations)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, `Event is invalid, "specversion" is required. "id" must be a valid UUID. `+
		`"subject" must be a non-empty string. "data.correlationId" is required. "data.crn" must be a positive integer`,
		appErr.Message)
}

func TestValidate_MessageRules(t *testing.T) {
	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, v.Validate(mustParse(t, messageEventPayload), types.CategoryMessage))
	})

	tests := []struct {
		name   string
		mutate func(data map[string]any, event RawEvent)
		want   string
	}{
		{
			name:   "data missing",
			mutate: func(_ map[string]any, e RawEvent) { delete(e, "data") },
			want:   `"data" is required`,
		},
		{
			name:   "data not an object",
			mutate: func(_ map[string]any, e RawEvent) { e["data"] = "text" },
			want:   `"data" must be an object`,
		},
		{
			name:   "empty correlationId",
			mutate: func(d map[string]any, _ RawEvent) { d["correlationId"] = "" },
			want:   `"data.correlationId" must be a non-empty string`,
		},
		{
			name:   "null recipient",
			mutate: func(d map[string]any, _ RawEvent) { d["recipient"] = nil },
			want:   `"data.recipient" must be a non-empty string`,
		},
		{
			name:   "fractional sbi",
			mutate: func(d map[string]any, _ RawEvent) { d["sbi"] = 1.5 },
			want:   `"data.sbi" must be a positive integer`,
		},
		{
			name:   "negative crn",
			mutate: func(d map[string]any, _ RawEvent) { d["crn"] = -1 },
			want:   `"data.crn" must be a positive integer`,
		},
		{
			name:   "content not an object",
			mutate: func(d map[string]any, _ RawEvent) { d["content"] = "body" },
			want:   `"data.content" must be an object`,
		},
		{
			name:   "empty content body",
			mutate: func(d map[string]any, _ RawEvent) { d["content"] = map[string]any{"subject": "Hi", "body": ""} },
			want:   `"data.content.body" must be a non-empty string`,
		},
		{
			name:   "statusDetails not an object",
			mutate: func(d map[string]any, _ RawEvent) { d["statusDetails"] = []any{"sending"} },
			want:   `"data.statusDetails" must be an object`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := mustParse(t, messageEventPayload)
			tt.mutate(event["data"].(map[string]any), event)

			violations := validationViolations(t, v.Validate(event, types.CategoryMessage))
			assert.Equal(t, []string{tt.want}, violations)
		})
	}
}

func TestValidate_UnknownCategory(t *testing.T) {
	err := NewValidator().Validate(mustParse(t, messageEventPayload), types.EventCategory("payment"))
	assert.Equal(t, types.ErrCodeEventUnknownType, types.CodeOf(err))
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{
		"2023-10-17T14:48:01.000Z",
		"2025-10-19T12:34:56Z",
		"2025-10-19T12:34:56+01:00",
		"2025-10-19T12:34:56.123456789Z",
		"2025-10-19T12:34:56",
		"2025-10-19 12:34:56",
		"2025-10-19",
	} {
		_, err := ParseTime(s)
		assert.NoError(t, err, s)
	}

	got, err := ParseTime("2025-10-19T12:34:56+01:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-10-19T11:34:56.000Z", FormatTime(got))

	_, err = ParseTime("a-non-date")
	assert.Error(t, err)
}
