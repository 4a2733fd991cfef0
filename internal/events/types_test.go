package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdm/internal/types"
)

func TestGetEventType_Message(t *testing.T) {
	for _, eventType := range []string{
		"uk.gov.fcp.sfd.notification.event",
		"uk.gov.fcp.sfd.notification.received",
		"uk.gov.fcp.sfd.notification.failure.provider",
		"uk.gov.fcp.sfd.notification.retry.expired",
	} {
		category, err := GetEventType(eventType)
		require.NoError(t, err, eventType)
		assert.Equal(t, types.CategoryMessage, category)
	}
}

func TestGetEventType_Unknown(t *testing.T) {
	_, err := GetEventType("unknown.event.type")

	require.Error(t, err)
	assert.EqualError(t, err, "event_unknown_type: Unknown event type: unknown.event.type")

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Unknown event type: unknown.event.type", appErr.Message)
}

func TestGetEventType_PrefixMustMatchFully(t *testing.T) {
	_, err := GetEventType("uk.gov.fcp.sfd.notification")
	assert.Error(t, err, "the prefix without its trailing dot is not a message type")
}

func TestClassify(t *testing.T) {
	category, err := Classify(RawEvent{"type": "uk.gov.fcp.sfd.notification.sending"})
	require.NoError(t, err)
	assert.Equal(t, types.CategoryMessage, category)

	for _, raw := range []RawEvent{
		{},
		{"type": nil},
		{"type": 42},
		{"type": "uk.gov.defra.fcp.event"},
	} {
		_, err := Classify(raw)
		assert.Equal(t, types.ErrCodeEventUnknownType, types.CodeOf(err), "raw=%v", raw)
	}
}

func TestStatusFromType(t *testing.T) {
	assert.Equal(t, "received", StatusFromType("uk.gov.fcp.sfd.notification.received"))
	assert.Equal(t, "failure.provider", StatusFromType("uk.gov.fcp.sfd.notification.failure.provider"))
	assert.Equal(t, "retry.expired", StatusFromType("uk.gov.fcp.sfd.notification.retry.expired"))
}
