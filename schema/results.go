package schema

// FileResult is the uniform outcome of a file operation.
type FileResult struct {
	Success  bool   `json:"success"`
	Content  string `json:"content,omitempty"`
	FilePath string `json:"filePath,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NodeType identifies a workspace tree node.
type NodeType string

const (
	// NodeFolder is a directory node.
	NodeFolder NodeType = "folder"
	// NodeFile is a regular file node.
	NodeFile NodeType = "file"
)

// TreeNode is one entry of a workspace tree.
type TreeNode struct {
	Name     string     `json:"name"`
	Type     NodeType   `json:"type"`
	Path     string     `json:"path"`
	Children []TreeNode `json:"children,omitempty"`
}

// AssistFailureKind classifies assistant failures for the UI.
type AssistFailureKind string

const (
	// AssistFailureConfig means the assistant is not configured.
	AssistFailureConfig AssistFailureKind = "config"
	// AssistFailureAuth means the API key was rejected.
	AssistFailureAuth AssistFailureKind = "auth"
	// AssistFailureRateLimit means the upstream quota was exhausted.
	AssistFailureRateLimit AssistFailureKind = "rate_limit"
	// AssistFailureNotFound means the model or endpoint does not exist.
	AssistFailureNotFound AssistFailureKind = "not_found"
	// AssistFailureUpstream is any other non-success upstream status.
	AssistFailureUpstream AssistFailureKind = "upstream"
	// AssistFailureNetwork means no response was received.
	AssistFailureNetwork AssistFailureKind = "network"
	// AssistFailureEmpty means the upstream answered without text.
	AssistFailureEmpty AssistFailureKind = "empty"
)

// AssistResult is the uniform outcome of an assistant request.
type AssistResult struct {
	Success bool              `json:"success"`
	Text    string            `json:"text,omitempty"`
	Kind    AssistFailureKind `json:"kind,omitempty"`
	Message string            `json:"message,omitempty"`
}

// RefactorResult is the outcome of a refactor request.
type RefactorResult struct {
	Success bool              `json:"success"`
	Code    string            `json:"refactoredCode,omitempty"`
	Kind    AssistFailureKind `json:"kind,omitempty"`
	Message string            `json:"message,omitempty"`
}

// CompletionResult carries a best-effort inline completion.
type CompletionResult struct {
	Completion *string `json:"completion"`
}
