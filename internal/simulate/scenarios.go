// Package simulate holds canonical notification event scenarios and publishes
// them to the events queue for local and non-production testing.
package simulate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"fdm/internal/types"
)

//go:embed fixtures/events.json
var fixturesJSON []byte

// Event is a canonical CloudEvent as published upstream.
type Event = map[string]any

// scenarios maps a dotted scenario path to the fixtures it sends, in order.
var scenarios = map[string][]string{
	"single.messageRequest":        {"messageRequest"},
	"single.validationFailure":     {"validationFailure"},
	"single.statusSending":         {"statusSending"},
	"single.statusDelivered":       {"statusDelivered"},
	"single.statusProviderFailure": {"statusProviderFailure"},
	"single.statusInternalFailure": {"statusInternalFailure"},
	"single.messageRetryRequest":   {"messageRetryRequest"},
	"single.statusRetryExpired":    {"statusRetryExpired"},

	// Message request, sending, delivered.
	"streams.successful": {"messageRequest", "statusSending", "statusDelivered"},
	// Message request rejected by validation.
	"streams.validationFailure": {"messageRequest", "validationFailure"},
	// Message request, sending, provider failure.
	"streams.providerFailure": {"messageRequest", "statusSending", "statusProviderFailure"},
	// Message request, internal failure.
	"streams.internalFailure": {"messageRequest", "statusInternalFailure"},
	// Internal failure, retried, then delivered.
	"streams.retrySuccess": {
		"messageRequest", "statusInternalFailure", "messageRetryRequest", "statusSending", "statusDelivered",
	},
	// Internal failure, retried, failed again and expired.
	"streams.retryFailure": {
		"messageRequest", "statusInternalFailure", "messageRetryRequest", "statusInternalFailureRepeat", "statusRetryExpired",
	},
}

// ScenarioInfo describes an available scenario.
type ScenarioInfo struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// ListScenarios returns every scenario sorted by path.
func ListScenarios() []ScenarioInfo {
	list := make([]ScenarioInfo, 0, len(scenarios))
	for path, names := range scenarios {
		list = append(list, ScenarioInfo{Path: path, Count: len(names)})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })
	return list
}

// GetScenario returns fresh copies of the events of the scenario at path.
// Callers may mutate the result.
func GetScenario(path string) ([]Event, error) {
	names, ok := scenarios[path]
	if !ok {
		return nil, NewScenarioNotFoundError(path)
	}

	fixtures, err := loadFixtures()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(names))
	for _, name := range names {
		event, ok := fixtures[name]
		if !ok {
			return nil, fmt.Errorf("simulate: fixture %q missing", name)
		}
		events = append(events, event)
	}
	return events, nil
}

// NewScenarioNotFoundError reports an unknown scenario path.
func NewScenarioNotFoundError(path string) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationScenario, "Scenario not found: "+path, nil)
}

// loadFixtures decodes the embedded fixtures. Each call returns new maps.
func loadFixtures() (map[string]Event, error) {
	dec := json.NewDecoder(bytes.NewReader(fixturesJSON))
	dec.UseNumber()
	var fixtures map[string]Event
	if err := dec.Decode(&fixtures); err != nil {
		return nil, fmt.Errorf("simulate: decode fixtures: %w", err)
	}
	return fixtures, nil
}
