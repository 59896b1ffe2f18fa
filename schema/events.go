package schema

import "time"

// UIEventType identifies a message pushed to the UI channel.
type UIEventType string

const (
	// UIEventTerminalData carries process output or a diagnostic line.
	UIEventTerminalData UIEventType = "terminal-data"
	// UIEventTreeChanged signals the watched workspace changed on disk.
	UIEventTreeChanged UIEventType = "tree-changed"
)

// OutputSource identifies who produced terminal data.
type OutputSource string

const (
	// SourceShell is output from the interactive shell session.
	SourceShell OutputSource = "shell"
	// SourceJob is output from an execution job.
	SourceJob OutputSource = "job"
	// SourceHost is a diagnostic synthesized by the host.
	SourceHost OutputSource = "host"
)

// UIEvent is one outbound message on the UI channel.
type UIEvent struct {
	Seq       uint64       `json:"seq"`
	Type      UIEventType  `json:"type"`
	Source    OutputSource `json:"source,omitempty"`
	JobID     JobID        `json:"job,omitempty"`
	Data      string       `json:"data,omitempty"`
	Path      string       `json:"path,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
