package ir

// Version constants for the stub format and the tool.
const (
	// FormatVersion is bumped whenever serialized output changes shape.
	FormatVersion = "1"

	// ToolVersion is the rbisynth release version.
	ToolVersion = "0.1.0"
)
