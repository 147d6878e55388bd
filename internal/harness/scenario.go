package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance scenario: an ordered list of boundary calls
// against a fresh core.
type Scenario struct {
	// Name uniquely identifies the scenario; it is also the golden file
	// name.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description,omitempty"`

	// Session is the fixed session token for the core under test.
	// Defaults to "harness-" + Name for deterministic traces.
	Session string `yaml:"session,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`
}

// Step is one boundary call. Exactly one field is set.
type Step struct {
	Event   *EventStep   `yaml:"event,omitempty"`
	Resolve *ResolveStep `yaml:"resolve,omitempty"`
	View    bool         `yaml:"view,omitempty"`
}

// EventStep names an application event plus its arguments. The fixture's
// event maker turns it into wire bytes.
type EventStep struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args,omitempty"`
}

// ResolveStep describes one shell resolution. Kind selects which of the
// payload fields apply.
type ResolveStep struct {
	// Request is the request id to resolve.
	Request uint32 `yaml:"request"`

	// Kind is the operation kind: http, timer, keyvalue, pubsub,
	// platform.
	Kind string `yaml:"kind"`

	// Done defaults to true; subscriptions set done: false for
	// intermediate deliveries.
	Done *bool `yaml:"done,omitempty"`

	// Error makes this an operation-level failure envelope.
	Error string `yaml:"error,omitempty"`

	// HTTP fields.
	Status int    `yaml:"status,omitempty"`
	Body   string `yaml:"body,omitempty"`

	// Key-value fields.
	Found *bool  `yaml:"found,omitempty"`
	Value string `yaml:"value,omitempty"`

	// Pub-sub field.
	Payload string `yaml:"payload,omitempty"`

	// Platform fields.
	OS      string `yaml:"os,omitempty"`
	Arch    string `yaml:"arch,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks structural requirements before execution.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("no steps")
	}
	for i, step := range s.Steps {
		set := 0
		if step.Event != nil {
			set++
			if step.Event.Name == "" {
				return fmt.Errorf("step %d: event without name", i)
			}
		}
		if step.Resolve != nil {
			set++
			if step.Resolve.Kind == "" {
				return fmt.Errorf("step %d: resolve without kind", i)
			}
		}
		if step.View {
			set++
		}
		if set != 1 {
			return fmt.Errorf("step %d: exactly one of event, resolve, view required", i)
		}
	}
	return nil
}

func (s *Scenario) session() string {
	if s.Session != "" {
		return s.Session
	}
	return "harness-" + s.Name
}
