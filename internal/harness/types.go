package harness

// Trace event kinds.
const (
	KindStart  = "start"
	KindGuard  = "guard"
	KindFinish = "finish"
)

// TraceEvent is one observed step of a navigation. Which fields are set
// depends on Kind: start carries the endpoints, guard the phase and
// verdict, finish the outcome.
type TraceEvent struct {
	Seq          int64  `json:"seq"`
	Kind         string `json:"kind"`
	NavigationID string `json:"navigation_id"`
	Trigger      string `json:"trigger"`
	From         string `json:"from"`
	To           string `json:"to"`
	Phase        string `json:"phase,omitempty"`
	Guard        string `json:"guard,omitempty"`
	Verdict      string `json:"verdict,omitempty"`
	Outcome      string `json:"outcome,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every navigation event in the order observed.
	Trace []TraceEvent `json:"trace"`

	// Errors is empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	FinalRoute    string `json:"final_route"`
	FinalName     string `json:"final_name,omitempty"`
	HistoryLength int    `json:"history_length"`
	HistoryIndex  int    `json:"history_index"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Finishes returns the finish events of the trace in order.
func (r *Result) Finishes() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Kind == KindFinish {
			out = append(out, ev)
		}
	}
	return out
}
