package main

import (
	"context"

	"pkt.systems/devdeck/internal/appconfig"
	"pkt.systems/devdeck/internal/journal"
	"pkt.systems/devdeck/internal/ledger"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// recordActivity books one event the same way the host does, journal
// included. Failures are logged; CLI commands never fail on bookkeeping.
func recordActivity(ctx context.Context, cfg appconfig.Config, event schema.ActivityEvent) {
	logger := pslog.Ctx(ctx)
	var opts []ledger.Option
	if cfg.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.Journal.Path, logger)
		if err != nil {
			logger.Warn("journal open failed", "path", cfg.Journal.Path, "err", err)
		} else {
			defer func() { _ = j.Close() }()
			opts = append(opts, ledger.WithObserver(j))
		}
	}
	l, err := ledger.Open(cfg.DataDir, logger, opts...)
	if err != nil {
		logger.Warn("ledger open failed", "dir", cfg.DataDir, "err", err)
		return
	}
	if err := l.Record(ctx, event); err != nil {
		logger.Warn("ledger record failed", "type", event.Type, "err", err)
	}
}
