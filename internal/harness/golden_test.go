package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_BasicNavigation(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/basic_navigation.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRunWithGolden_AuthRedirect(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/auth_redirect.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestMarshalTrace_Canonical(t *testing.T) {
	result := NewResult()
	result.FinalRoute = "/a"
	result.Trace = []TraceEvent{
		{Seq: 1, Kind: KindGuard, NavigationID: "nav-1", Trigger: "push", From: "/", To: "/a",
			Phase: "before", Guard: "beforeEach[0]", Verdict: "proceed"},
		{Seq: 2, Kind: KindFinish, NavigationID: "nav-1", Trigger: "push", From: "/", To: "/a",
			Outcome: "failed", Error: "boom"},
	}

	data, err := MarshalTrace("x", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"final_route":"/a","scenario_name":"x","trace":[`+
			`{"from":"/","guard":"beforeEach[0]","kind":"guard","navigation_id":"nav-1","phase":"before","seq":1,"to":"/a","trigger":"push","verdict":"proceed"},`+
			`{"error":"boom","from":"/","kind":"finish","navigation_id":"nav-1","outcome":"failed","seq":2,"to":"/a","trigger":"push"}]}`,
		string(data))
}

func TestMarshalTrace_Stable(t *testing.T) {
	result := sampleResult()
	first, err := MarshalTrace("s", result)
	require.NoError(t, err)
	for range 10 {
		again, err := MarshalTrace("s", result)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
