// Package mock provides the scripted agent replies served by the mock backend.
package mock

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	agentModels "github.com/watercrawl/WaterCrawl-sub003/internal/domain/models/agent"
)

//go:embed default_scenarios.yaml
var defaultScenarios []byte

// ScriptedEvent is one event of a scenario
type ScriptedEvent struct {
	Type  string                 `yaml:"type"`
	Data  map[string]interface{} `yaml:"data"`
	Delay time.Duration          `yaml:"delay"`
}

// TimedEvent is a ready-to-send event and the pause before it
type TimedEvent struct {
	Event agentModels.Event
	Delay time.Duration
}

// Scenario is a scripted reply chosen by matching the query
type Scenario struct {
	Name    string          `yaml:"name"`
	Agent   string          `yaml:"agent"`   // Restricts the scenario to one agent id
	Match   string          `yaml:"match"`   // Case-insensitive substring of the query
	Default bool            `yaml:"default"` // Used when nothing else matches
	Events  []ScriptedEvent `yaml:"events"`
}

// ScenarioSet is the full scenario file
type ScenarioSet struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads a scenario file.
// A missing file selects the built-in scenarios when optional is true.
func LoadScenarios(path string, optional bool) (*ScenarioSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return DefaultScenarios()
		}
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenarios(data)
}

// DefaultScenarios returns the built-in scenarios
func DefaultScenarios() (*ScenarioSet, error) {
	return ParseScenarios(defaultScenarios)
}

// ParseScenarios decodes and validates a scenario document
func ParseScenarios(data []byte) (*ScenarioSet, error) {
	var set ScenarioSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse scenario file: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario file: %w", err)
	}
	return &set, nil
}

// Validate checks every scenario
func (s *ScenarioSet) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Scenarios, validation.Required, validation.Each(validation.By(validateScenario))),
	)
}

func validateScenario(value interface{}) error {
	sc, ok := value.(Scenario)
	if !ok {
		return fmt.Errorf("invalid scenario type %T", value)
	}
	return validation.ValidateStruct(&sc,
		validation.Field(&sc.Name, validation.Required),
		validation.Field(&sc.Match, validation.When(!sc.Default, validation.Required)),
		validation.Field(&sc.Events, validation.Required, validation.Each(validation.By(validateEvent))),
	)
}

func validateEvent(value interface{}) error {
	ev, ok := value.(ScriptedEvent)
	if !ok {
		return fmt.Errorf("invalid event type %T", value)
	}
	return validation.ValidateStruct(&ev,
		validation.Field(&ev.Type, validation.Required, validation.By(func(v interface{}) error {
			if !agentModels.EventKind(ev.Type).Known() {
				return fmt.Errorf("unknown event type %q", ev.Type)
			}
			return nil
		})),
		validation.Field(&ev.Delay, validation.Min(time.Duration(0))),
	)
}

// Match returns the first scenario for agentID whose match string occurs in
// query, falling back to the first matching default scenario. Returns nil
// when nothing applies.
func (s *ScenarioSet) Match(agentID, query string) *Scenario {
	query = strings.ToLower(query)
	var fallback *Scenario
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		if sc.Agent != "" && sc.Agent != agentID {
			continue
		}
		if sc.Default {
			if fallback == nil {
				fallback = sc
			}
			continue
		}
		if strings.Contains(query, strings.ToLower(sc.Match)) {
			return sc
		}
	}
	return fallback
}

// TimedEvents converts the script into wire events
func (sc *Scenario) TimedEvents() ([]TimedEvent, error) {
	out := make([]TimedEvent, 0, len(sc.Events))
	for _, se := range sc.Events {
		data := se.Data
		if data == nil {
			data = map[string]interface{}{}
		}
		ev, err := agentModels.NewEvent(agentModels.EventKind(se.Type), data)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		out = append(out, TimedEvent{Event: ev, Delay: se.Delay})
	}
	return out, nil
}

// HasConversationEvent reports whether the script announces a conversation id
func (sc *Scenario) HasConversationEvent() bool {
	for _, se := range sc.Events {
		if agentModels.EventKind(se.Type) == agentModels.EventConversation {
			return true
		}
	}
	return false
}
