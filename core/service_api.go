package core

import (
	"context"

	"pkt.systems/devdeck/schema"
)

// Shell is the single interactive shell session.
type Shell interface {
	Send(ctx context.Context, line string)
}

// JobHandle observes one execution job.
type JobHandle interface {
	ID() schema.JobID
	Path() string
	State() schema.JobState
	Done() <-chan struct{}
	ExitCode() (int, bool)
	Err() error
}

// Dispatcher runs user files through their language runtime.
type Dispatcher interface {
	Run(ctx context.Context, path string) JobHandle
}

// Ledger records and reports developer activity.
type Ledger interface {
	Record(ctx context.Context, event schema.ActivityEvent) error
	Query(ctx context.Context) (schema.DeveloperStats, error)
	SaveGoals(ctx context.Context, goals schema.Goals) error
}

// SettingsStore persists editor settings.
type SettingsStore interface {
	Load(ctx context.Context) schema.Settings
	Save(ctx context.Context, settings schema.Settings) (schema.Settings, error)
}

// Assistant answers explain, refactor, and completion requests.
type Assistant interface {
	Explain(ctx context.Context, code string) schema.AssistResult
	Refactor(ctx context.Context, code, language string) schema.RefactorResult
	InlineCompletion(ctx context.Context, code, language string) *string
}

// Workspace reads and writes user files and lists project trees.
type Workspace interface {
	Read(ctx context.Context, path string) schema.FileResult
	Write(ctx context.Context, path, content string) schema.FileResult
	SaveAs(ctx context.Context, path, content string) schema.FileResult
	Tree(ctx context.Context, root string) ([]schema.TreeNode, error)
	Watch(ctx context.Context, root string) error
}
