package schema

import (
	"fmt"
	"strings"
)

// ActivityKind identifies an activity event recorded by the ledger.
type ActivityKind string

const (
	// ActivityActiveTime adds active coding seconds for a language.
	ActivityActiveTime ActivityKind = "activeTime"
	// ActivitySave counts a file save.
	ActivitySave ActivityKind = "save"
	// ActivityExecute counts a code execution.
	ActivityExecute ActivityKind = "execute"
	// ActivityAIHelp counts an assistant explanation.
	ActivityAIHelp ActivityKind = "ai-help"
	// ActivityAIRefactor counts an assistant refactor.
	ActivityAIRefactor ActivityKind = "ai-refactor"
)

// DefaultLanguage is used when an active-time sample has no language.
const DefaultLanguage Language = "plaintext"

// ActivityEvent is one fire-and-forget usage event.
type ActivityEvent struct {
	Type     ActivityKind `json:"type"`
	Seconds  int64        `json:"seconds,omitempty"`
	Language Language     `json:"language,omitempty"`
}

// NormalizeActivityKind maps accepted spellings onto canonical kinds.
func NormalizeActivityKind(value string) (ActivityKind, bool) {
	switch strings.TrimSpace(value) {
	case "activeTime", "active-time", "active_time":
		return ActivityActiveTime, true
	case "save":
		return ActivitySave, true
	case "execute":
		return ActivityExecute, true
	case "ai-help", "aiHelp", "ai_help":
		return ActivityAIHelp, true
	case "ai-refactor", "aiRefactor", "ai_refactor":
		return ActivityAIRefactor, true
	default:
		return "", false
	}
}

// NormalizeActivityEvent validates an event and fills defaults.
func NormalizeActivityEvent(event ActivityEvent) (ActivityEvent, error) {
	kind, ok := NormalizeActivityKind(string(event.Type))
	if !ok {
		return ActivityEvent{}, fmt.Errorf("%w: unknown type %q", ErrInvalidActivity, event.Type)
	}
	event.Type = kind
	if kind != ActivityActiveTime {
		event.Seconds = 0
		event.Language = ""
		return event, nil
	}
	if event.Seconds < 0 {
		return ActivityEvent{}, fmt.Errorf("%w: negative seconds", ErrInvalidActivity)
	}
	event.Language = Language(strings.TrimSpace(string(event.Language)))
	if event.Language == "" {
		event.Language = DefaultLanguage
	}
	return event, nil
}
