package core

import (
	"fmt"

	"pkt.systems/devdeck/schema"
)

// AssistError wraps assistant failures with a stable classification.
type AssistError struct {
	Kind    schema.AssistFailureKind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *AssistError) Error() string {
	if e == nil {
		return "assist error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("assist %s failed", e.Op)
	}
	return "assist error"
}

func (e *AssistError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
