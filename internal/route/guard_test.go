package route

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/corleone113/waypoint/internal/location"
)

func TestDecisions(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		decision Decision
		verdict  Verdict
		to       location.Location
		err      error
	}{
		{name: "next", decision: Next(), verdict: Proceed},
		{name: "abort", decision: Abort(), verdict: Reject},
		{
			name:     "redirect location",
			decision: RedirectLocation(location.Location{Name: "login", Replace: true}),
			verdict:  Reroute,
			to:       location.Location{Name: "login", Replace: true},
		},
		{
			name:     "redirect path",
			decision: RedirectPath("/login?next=%2Fme"),
			verdict:  Reroute,
			to:       location.From("/login?next=%2Fme"),
		},
		{name: "fail", decision: Fail(boom), verdict: Failure, err: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.verdict, tt.decision.Verdict)
			assert.Equal(t, tt.to, tt.decision.To)
			assert.Equal(t, tt.err, tt.decision.Err)
		})
	}
}

func TestNextWithCallback(t *testing.T) {
	var got any
	d := NextWithCallback(func(instance any) { got = instance })

	assert.Equal(t, Proceed, d.Verdict)
	d.Callback("view")
	assert.Equal(t, "view", got)
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "proceed", Proceed.String())
	assert.Equal(t, "abort", Reject.String())
	assert.Equal(t, "redirect", Reroute.String())
	assert.Equal(t, "error", Failure.String())
	assert.Equal(t, "unknown", Verdict(42).String())
}
