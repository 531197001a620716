package journal

// NavigationRecord is one finished navigation.
type NavigationRecord struct {
	ID        string `json:"id"`
	Session   string `json:"session"`
	Seq       int64  `json:"seq"`
	Trigger   string `json:"trigger"`
	From      string `json:"from"`
	To        string `json:"to"`
	Outcome   string `json:"outcome"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// MutationRecord is one commit. Payload must be encodable by
// ir.MarshalCanonical; StateHash is ir.StateHash of the state the commit
// produced.
type MutationRecord struct {
	ID        string `json:"id"`
	Session   string `json:"session"`
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	StateHash string `json:"state_hash"`
}
