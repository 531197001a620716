package ir

// Version constants for persisted formats and the tool.
const (
	// TraceVersion is the golden trace format version.
	TraceVersion = "1"

	// ToolVersion is the waypoint version.
	ToolVersion = "0.1.0"
)
