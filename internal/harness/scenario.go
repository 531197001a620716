package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a navigation test scenario: a route table, the guards
// installed on the router, a sequence of navigation steps and assertions
// over the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Routes is a CUE file or package directory holding a routes list.
	// LoadScenario resolves it relative to the scenario file.
	Routes string `yaml:"routes"`

	// Mode is abstract (default), hash or history.
	Mode string `yaml:"mode,omitempty"`

	// Base is the basename for hash and history modes.
	Base string `yaml:"base,omitempty"`

	// Start is the app path shown before the initial navigation.
	// Defaults to "/".
	Start string `yaml:"start,omitempty"`

	Guards []GuardSpec `yaml:"guards,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: final_route, trace_contains, trace_order,
	// trace_count, history_length
	Assertions []Assertion `yaml:"assertions"`
}

// GuardSpec declares a global guard.
type GuardSpec struct {
	// Hook is beforeEach or beforeResolve.
	Hook string `yaml:"hook"`

	// When is a path.Match pattern tested against the target path. Empty
	// matches every navigation; unmatched navigations proceed.
	When string `yaml:"when,omitempty"`

	// Decision is next, abort, redirect or error.
	Decision string `yaml:"decision"`

	// Target is the redirect location.
	Target string `yaml:"target,omitempty"`

	// Message is the error text for an error decision.
	Message string `yaml:"message,omitempty"`
}

// Step is one navigation call. Exactly one of the call fields is set.
type Step struct {
	Push    string `yaml:"push,omitempty"`
	Replace string `yaml:"replace,omitempty"`
	Go      *int   `yaml:"go,omitempty"`
	Back    bool   `yaml:"back,omitempty"`
	Forward bool   `yaml:"forward,omitempty"`

	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect checks the first navigation a step started and the route
// current once the step returned.
type StepExpect struct {
	Outcome string `yaml:"outcome,omitempty"`
	// Error is a navigation error code (ABORTED, REDIRECTED, ...).
	Error string `yaml:"error,omitempty"`
	Route string `yaml:"route,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_route": Current route path and/or name
	// - "trace_contains": An event matching Event exists
	// - "trace_order": Events matching Events appear in order
	// - "trace_count": Exactly Count events match Event
	// - "history_length": The backend holds Count entries
	Type string `yaml:"type"`

	Path string `yaml:"path,omitempty"`
	Name string `yaml:"name,omitempty"`

	Event  *EventMatch  `yaml:"event,omitempty"`
	Events []EventMatch `yaml:"events,omitempty"`

	Count int `yaml:"count,omitempty"`
}

// EventMatch selects trace events. Empty fields match anything.
type EventMatch struct {
	Kind      string `yaml:"kind,omitempty"`
	Trigger   string `yaml:"trigger,omitempty"`
	From      string `yaml:"from,omitempty"`
	To        string `yaml:"to,omitempty"`
	Phase     string `yaml:"phase,omitempty"`
	Guard     string `yaml:"guard,omitempty"`
	Verdict   string `yaml:"verdict,omitempty"`
	Outcome   string `yaml:"outcome,omitempty"`
	ErrorCode string `yaml:"error_code,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalRoute    = "final_route"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertHistoryLength = "history_length"
)

// Guard hooks and decisions.
const (
	HookBeforeEach    = "beforeEach"
	HookBeforeResolve = "beforeResolve"

	DecisionNext     = "next"
	DecisionAbort    = "abort"
	DecisionRedirect = "redirect"
	DecisionError    = "error"
)

// Router modes.
const (
	ModeAbstract = "abstract"
	ModeHash     = "hash"
	ModeHistory  = "history"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative routes path is resolved against the scenario's directory.
func LoadScenario(file string) (*Scenario, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Routes != "" && !filepath.IsAbs(scenario.Routes) {
		scenario.Routes = filepath.Join(filepath.Dir(file), scenario.Routes)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Routes); err != nil {
		return nil, fmt.Errorf("invalid scenario: routes not found: %s", scenario.Routes)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Routes == "" {
		return fmt.Errorf("routes is required")
	}

	switch s.Mode {
	case "", ModeAbstract, ModeHash, ModeHistory:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	for i, g := range s.Guards {
		if err := validateGuard(i, &g); err != nil {
			return err
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if n := step.calls(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one of push, replace, go, back, forward is required (got %d)", i, n)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func (s Step) calls() int {
	n := 0
	for _, set := range []bool{s.Push != "", s.Replace != "", s.Go != nil, s.Back, s.Forward} {
		if set {
			n++
		}
	}
	return n
}

func validateGuard(index int, g *GuardSpec) error {
	switch g.Hook {
	case HookBeforeEach, HookBeforeResolve:
	case "":
		return fmt.Errorf("guards[%d]: hook is required", index)
	default:
		return fmt.Errorf("guards[%d]: unknown hook %q", index, g.Hook)
	}

	if g.When != "" {
		if _, err := path.Match(g.When, "/"); err != nil {
			return fmt.Errorf("guards[%d]: bad when pattern %q: %w", index, g.When, err)
		}
	}

	switch g.Decision {
	case DecisionNext, DecisionAbort, DecisionError:
	case DecisionRedirect:
		if g.Target == "" {
			return fmt.Errorf("guards[%d]: target is required for redirect", index)
		}
	case "":
		return fmt.Errorf("guards[%d]: decision is required", index)
	default:
		return fmt.Errorf("guards[%d]: unknown decision %q", index, g.Decision)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalRoute:
		if a.Path == "" && a.Name == "" {
			return fmt.Errorf("assertions[%d]: path or name is required for final_route", index)
		}
	case AssertTraceContains:
		if a.Event == nil {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == nil {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertHistoryLength:
		if a.Count <= 0 {
			return fmt.Errorf("assertions[%d]: count must be positive for history_length", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
