package logx

import (
	"context"

	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithJob annotates the context logger with the job id if present.
func WithJob(ctx context.Context, jobID schema.JobID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if jobID != "" {
		log = log.With("job", jobID)
	}
	return log
}

// WithPath annotates the logger with a file path when available.
func WithPath(log pslog.Logger, path string) pslog.Logger {
	if path != "" {
		log = log.With("path", path)
	}
	return log
}

// WithActivity annotates the logger with activity event fields.
func WithActivity(log pslog.Logger, event schema.ActivityEvent) pslog.Logger {
	if event.Type != "" {
		log = log.With("activity", event.Type)
	}
	if event.Language != "" {
		log = log.With("language", event.Language)
	}
	return log
}
