package events

import (
	"fmt"
	"strings"

	"fdm/internal/types"
)

// MessageEventPrefix is the type prefix of every notification lifecycle event.
// The remainder of the type is the aggregate status, e.g. "failure.provider".
const MessageEventPrefix = "uk.gov.fcp.sfd.notification."

// categoryPrefixes is the static type registry. Longer prefixes must come
// first if prefixes ever overlap.
var categoryPrefixes = []struct {
	prefix   string
	category types.EventCategory
}{
	{prefix: MessageEventPrefix, category: types.CategoryMessage},
}

// GetEventType maps an event type string to its category.
func GetEventType(eventType string) (types.EventCategory, error) {
	for _, entry := range categoryPrefixes {
		if strings.HasPrefix(eventType, entry.prefix) {
			return entry.category, nil
		}
	}
	return "", types.NewUnknownEventTypeError(eventType)
}

// Classify reads the "type" field of a parsed event and resolves its category.
// A missing or non-string type is reported as unknown.
func Classify(raw RawEvent) (types.EventCategory, error) {
	value, ok := raw["type"]
	if !ok || value == nil {
		return "", types.NewUnknownEventTypeError("<missing>")
	}
	eventType, ok := value.(string)
	if !ok {
		return "", types.NewUnknownEventTypeError(fmt.Sprint(value))
	}
	return GetEventType(eventType)
}

// StatusFromType returns the lifecycle status carried by a message event type.
func StatusFromType(eventType string) string {
	return strings.TrimPrefix(eventType, MessageEventPrefix)
}
