package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmptyPath indicates a required file path was empty.
	ErrEmptyPath = errors.New("file path is required")
	// ErrUnsupportedFileType indicates no runner exists for the file extension.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrInvalidActivity indicates an unknown or malformed activity event.
	ErrInvalidActivity = errors.New("invalid activity event")
	// ErrShellNotRunning indicates the shell session has not started or has exited.
	ErrShellNotRunning = errors.New("shell is not running")
	// ErrTooManyJobs indicates the configured job limit was reached.
	ErrTooManyJobs = errors.New("too many running jobs")
	// ErrAssistNotConfigured indicates no API key is available for the assistant.
	ErrAssistNotConfigured = errors.New("API key not configured")
)
