package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Kind: KindStart, NavigationID: "nav-1", Trigger: "init", From: "/", To: "/"},
		{Seq: 2, Kind: KindFinish, NavigationID: "nav-1", Trigger: "init", From: "/", To: "/", Outcome: "committed"},
		{Seq: 3, Kind: KindStart, NavigationID: "nav-2", Trigger: "push", From: "/", To: "/private"},
		{Seq: 4, Kind: KindGuard, NavigationID: "nav-2", Trigger: "push", From: "/", To: "/private",
			Phase: "before", Guard: "beforeEach[0]", Verdict: "redirect"},
		{Seq: 5, Kind: KindFinish, NavigationID: "nav-2", Trigger: "push", From: "/", To: "/private",
			Outcome: "redirected", ErrorCode: "REDIRECTED"},
		{Seq: 6, Kind: KindStart, NavigationID: "nav-3", Trigger: "push", From: "/", To: "/login"},
		{Seq: 7, Kind: KindFinish, NavigationID: "nav-3", Trigger: "push", From: "/", To: "/login", Outcome: "committed"},
	}
}

func sampleResult() *Result {
	r := NewResult()
	r.Trace = sampleTrace()
	r.FinalRoute = "/login"
	r.FinalName = "login"
	r.HistoryLength = 2
	r.HistoryIndex = 1
	return r
}

func TestEventMatch_Matches(t *testing.T) {
	ev := sampleTrace()[4]

	assert.True(t, EventMatch{}.Matches(ev))
	assert.True(t, EventMatch{Kind: KindFinish, ErrorCode: "REDIRECTED"}.Matches(ev))
	assert.True(t, EventMatch{To: "/private", Outcome: "redirected", Trigger: "push"}.Matches(ev))
	assert.False(t, EventMatch{Kind: KindStart}.Matches(ev))
	assert.False(t, EventMatch{Kind: KindFinish, Outcome: "committed"}.Matches(ev))
}

func TestEventMatch_String(t *testing.T) {
	assert.Equal(t, "{any}", EventMatch{}.String())
	assert.Equal(t, "{kind=finish to=/a outcome=aborted}", EventMatch{Kind: KindFinish, To: "/a", Outcome: "aborted"}.String())
}

func TestAssertFinalRoute(t *testing.T) {
	r := sampleResult()

	assert.NoError(t, assertFinalRoute(r, Assertion{Type: AssertFinalRoute, Path: "/login"}))
	assert.NoError(t, assertFinalRoute(r, Assertion{Type: AssertFinalRoute, Name: "login"}))
	assert.NoError(t, assertFinalRoute(r, Assertion{Type: AssertFinalRoute, Path: "/login", Name: "login"}))

	err := assertFinalRoute(r, Assertion{Type: AssertFinalRoute, Path: "/"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: route /")
	assert.Contains(t, err.Error(), "Actual: route /login")

	err = assertFinalRoute(r, Assertion{Type: AssertFinalRoute, Path: "/login", Name: "home"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `route named "home"`)
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Event: &EventMatch{Kind: KindGuard, Verdict: "redirect"}}))

	err := assertTraceContains(trace, Assertion{Event: &EventMatch{Kind: KindGuard, Verdict: "abort"}})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "not found in trace", ae.Actual)
	assert.Len(t, ae.Trace, len(trace))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name    string
		events  []EventMatch
		wantErr string
	}{
		{
			name: "in order with gaps",
			events: []EventMatch{
				{Kind: KindStart, To: "/private"},
				{Kind: KindFinish, Outcome: "redirected"},
				{Kind: KindFinish, To: "/login"},
			},
		},
		{
			name: "same matcher twice needs two events",
			events: []EventMatch{
				{Kind: KindFinish, Outcome: "committed"},
				{Kind: KindFinish, Outcome: "committed"},
			},
		},
		{
			name: "reversed",
			events: []EventMatch{
				{Kind: KindFinish, To: "/login"},
				{Kind: KindFinish, Outcome: "redirected"},
			},
			wantErr: "events[1]",
		},
		{
			name:    "missing",
			events:  []EventMatch{{Kind: KindFinish, Outcome: "cancelled"}},
			wantErr: "events[0] {kind=finish outcome=cancelled}",
		},
		{
			name: "three committed finishes do not exist",
			events: []EventMatch{
				{Kind: KindFinish, Outcome: "committed"},
				{Kind: KindFinish, Outcome: "committed"},
				{Kind: KindFinish, Outcome: "committed"},
			},
			wantErr: "events[2]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(trace, Assertion{Type: AssertTraceOrder, Events: tt.events})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Event: &EventMatch{Kind: KindStart}, Count: 3}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Event: &EventMatch{Outcome: "aborted"}, Count: 0}))

	err := assertTraceCount(trace, Assertion{Event: &EventMatch{Kind: KindFinish}, Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 occurrences of {kind=finish}")
	assert.Contains(t, err.Error(), "Actual: 3 occurrences")
}

func TestAssertHistoryLength(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, assertHistoryLength(r, Assertion{Count: 2}))

	err := assertHistoryLength(r, Assertion{Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 3 history entries")
	assert.NotContains(t, err.Error(), "Full trace")
}

func TestAssertionError_ListsTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceContains,
		Expected: "x",
		Actual:   "y",
		Trace:    sampleTrace()[3:5],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_contains")
	assert.Contains(t, msg, "[4] guard before beforeEach[0] redirect")
	assert.Contains(t, msg, "[5] finish push / -> /private redirected REDIRECTED")
}

func TestEvaluateAssertions(t *testing.T) {
	r := sampleResult()

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertFinalRoute, Path: "/login"},
		{Type: AssertTraceContains, Event: &EventMatch{ErrorCode: "REDIRECTED"}},
		{Type: AssertTraceCount, Event: &EventMatch{Kind: KindGuard}, Count: 1},
		{Type: AssertHistoryLength, Count: 2},
	})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(r, []Assertion{
		{Type: AssertFinalRoute, Path: "/"},
		{Type: AssertTraceContains},
		{Type: "final_state"},
		{Type: AssertHistoryLength, Count: 2},
	})
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "final_route")
	assert.Contains(t, errs[1], "assertion[1]: trace_contains requires an event")
	assert.Contains(t, errs[2], `assertion[2]: unknown assertion type "final_state"`)
}
