package schema

// TerminalRequest sends a line to the shell session.
type TerminalRequest struct {
	Command string `json:"command"`
}

// RunRequest executes a file.
type RunRequest struct {
	FilePath string `json:"filePath"`
}

// RunResponse acknowledges a run request.
type RunResponse struct {
	JobID JobID    `json:"job"`
	State JobState `json:"state"`
}

// FileRequest reads a file.
type FileRequest struct {
	FilePath string `json:"filePath"`
}

// WriteFileRequest writes a file.
type WriteFileRequest struct {
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

// OpenWorkspaceRequest opens a workspace root.
type OpenWorkspaceRequest struct {
	Path string `json:"path"`
}

// WorkspaceResponse returns a workspace tree.
type WorkspaceResponse struct {
	Root string     `json:"root"`
	Tree []TreeNode `json:"tree"`
}

// AssistRequest carries code for an assistant call.
type AssistRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}
