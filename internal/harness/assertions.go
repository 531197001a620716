package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describeEvent(event))
		}
	}

	return buf.String()
}

func describeEvent(ev TraceEvent) string {
	switch ev.Kind {
	case KindGuard:
		return fmt.Sprintf("guard %s %s %s", ev.Phase, ev.Guard, ev.Verdict)
	case KindFinish:
		s := fmt.Sprintf("finish %s %s -> %s %s", ev.Trigger, ev.From, ev.To, ev.Outcome)
		if ev.ErrorCode != "" {
			s += " " + ev.ErrorCode
		}
		return s
	default:
		return fmt.Sprintf("%s %s %s -> %s", ev.Kind, ev.Trigger, ev.From, ev.To)
	}
}

// Matches reports whether ev has every field m sets.
func (m EventMatch) Matches(ev TraceEvent) bool {
	for _, f := range []struct{ want, got string }{
		{m.Kind, ev.Kind},
		{m.Trigger, ev.Trigger},
		{m.From, ev.From},
		{m.To, ev.To},
		{m.Phase, ev.Phase},
		{m.Guard, ev.Guard},
		{m.Verdict, ev.Verdict},
		{m.Outcome, ev.Outcome},
		{m.ErrorCode, ev.ErrorCode},
	} {
		if f.want != "" && f.want != f.got {
			return false
		}
	}
	return true
}

func (m EventMatch) String() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("kind", m.Kind)
	add("trigger", m.Trigger)
	add("from", m.From)
	add("to", m.To)
	add("phase", m.Phase)
	add("guard", m.Guard)
	add("verdict", m.Verdict)
	add("outcome", m.Outcome)
	add("error_code", m.ErrorCode)
	if len(parts) == 0 {
		return "{any}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func assertFinalRoute(result *Result, assertion Assertion) error {
	if assertion.Path != "" && assertion.Path != result.FinalRoute {
		return &AssertionError{
			Type:     AssertFinalRoute,
			Expected: fmt.Sprintf("route %s", assertion.Path),
			Actual:   fmt.Sprintf("route %s", result.FinalRoute),
			Trace:    result.Trace,
		}
	}
	if assertion.Name != "" && assertion.Name != result.FinalName {
		return &AssertionError{
			Type:     AssertFinalRoute,
			Expected: fmt.Sprintf("route named %q", assertion.Name),
			Actual:   fmt.Sprintf("route named %q", result.FinalName),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceContains checks that some event matches (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if assertion.Event.Matches(event) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s", assertion.Event),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the events appear in the specified order.
// They don't need to be consecutive (intervening events are allowed).
// Each match is searched after the previous one.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Events {
		found := false
		for ; pos < len(trace); pos++ {
			if want.Matches(trace[pos]) {
				found = true
				pos++
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   fmt.Sprintf("events[%d] %s not found after its predecessors", i, want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count events match.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if assertion.Event.Matches(event) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

func assertHistoryLength(result *Result, assertion Assertion) error {
	if result.HistoryLength != assertion.Count {
		return &AssertionError{
			Type:     AssertHistoryLength,
			Expected: fmt.Sprintf("%d history entries", assertion.Count),
			Actual:   fmt.Sprintf("%d history entries", result.HistoryLength),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalRoute:
			err = assertFinalRoute(result, assertion)
		case AssertTraceContains, AssertTraceCount:
			if assertion.Event == nil {
				err = fmt.Errorf("assertion[%d]: %s requires an event", i, assertion.Type)
			} else if assertion.Type == AssertTraceContains {
				err = assertTraceContains(result.Trace, assertion)
			} else {
				err = assertTraceCount(result.Trace, assertion)
			}
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertHistoryLength:
			err = assertHistoryLength(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
