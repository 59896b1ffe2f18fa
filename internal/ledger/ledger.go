package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pkt.systems/devdeck/internal/logx"
	"pkt.systems/devdeck/internal/persist"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// FileName is the ledger document name inside the data directory.
const FileName = "developer-stats.json"

// Observer is notified after an event has been persisted.
type Observer interface {
	ObserveActivity(ctx context.Context, at time.Time, event schema.ActivityEvent) error
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for day keys.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithObserver mirrors recorded events to obs.
func WithObserver(obs Observer) Option {
	return func(l *Ledger) { l.observer = obs }
}

// Ledger is the persisted activity store. Every mutation runs a full
// load, modify, and persist cycle under one mutex and an advisory file
// lock, so CLI commands and the host can share a data directory.
type Ledger struct {
	mu       sync.Mutex
	file     *persist.File
	read     func(target any) (bool, error)
	log      pslog.Logger
	now      func() time.Time
	observer Observer
}

// Open constructs a ledger stored in dir.
func Open(dir string, logger pslog.Logger, opts ...Option) (*Ledger, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	logger = logger.With("component", "ledger")
	file, err := persist.NewFileWithLogger(dir, FileName, logger)
	if err != nil {
		return nil, err
	}
	l := &Ledger{file: file, read: file.Load, log: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.file.Path()
}

// EnsureDefaults writes an empty ledger when none exists yet.
func (l *Ledger) EnsureDefaults(ctx context.Context) error {
	return l.locked(func() error {
		if l.file.Exists() {
			return nil
		}
		if err := l.file.Save(schema.DefaultDeveloperStats()); err != nil {
			return fmt.Errorf("create ledger: %w", err)
		}
		pslog.Ctx(ctx).Info("ledger created", "path", l.file.Path())
		return nil
	})
}

// Record applies event to today's bucket and updates the streak.
func (l *Ledger) Record(ctx context.Context, event schema.ActivityEvent) error {
	event, err := schema.NormalizeActivityEvent(event)
	if err != nil {
		return err
	}
	log := logx.WithActivity(pslog.Ctx(ctx), event)

	var (
		now      time.Time
		stats    schema.DeveloperStats
		advanced bool
	)
	err = l.locked(func() error {
		now = l.now()
		var err error
		if stats, err = l.load(ctx); err != nil {
			return err
		}
		advanced = Apply(&stats, now, event)
		if err := l.file.Save(stats); err != nil {
			return fmt.Errorf("persist ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Warn("ledger record failed", "err", err)
		return err
	}

	if advanced {
		log.Info("ledger streak advanced", "current", stats.CodingStreak.Current, "longest", stats.CodingStreak.Longest)
	}
	log.Trace("ledger record ok", "seconds", event.Seconds)
	if l.observer != nil {
		if err := l.observer.ObserveActivity(ctx, now, event); err != nil {
			log.Warn("ledger observer failed", "err", err)
		}
	}
	return nil
}

// Query returns the persisted state without mutating it.
func (l *Ledger) Query(ctx context.Context) (schema.DeveloperStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// SaveGoals replaces the stored goals.
func (l *Ledger) SaveGoals(ctx context.Context, goals schema.Goals) error {
	err := l.locked(func() error {
		stats, err := l.load(ctx)
		if err != nil {
			return err
		}
		stats.UserGoals = goals
		if err := l.file.Save(stats); err != nil {
			return fmt.Errorf("persist ledger: %w", err)
		}
		return nil
	})
	if err != nil {
		pslog.Ctx(ctx).Warn("ledger goals save failed", "err", err)
		return err
	}
	pslog.Ctx(ctx).Info("ledger goals saved", "daily_goal_seconds", goals.DailyCodingTimeGoalSeconds)
	return nil
}

// DaySummary is one day of a summary window.
type DaySummary struct {
	Day   schema.DateKey
	Stats schema.DayStats
}

// Summary is a window of recent days plus their totals.
type Summary struct {
	Days   []DaySummary
	Totals schema.DayStats
	Goals  schema.Goals
	Streak schema.Streak
}

// Summary returns the last days calendar days ending today, oldest first.
// Days without activity are included with zero counters.
func (l *Ledger) Summary(ctx context.Context, days int) (Summary, error) {
	if days <= 0 {
		days = 7
	}
	stats, err := l.Query(ctx)
	if err != nil {
		return Summary{}, err
	}
	today := l.now()
	out := Summary{
		Goals:  stats.UserGoals,
		Streak: stats.CodingStreak,
		Totals: *schema.NewDayStats(),
	}
	for i := days - 1; i >= 0; i-- {
		key := addDays(DayKey(today), -i)
		day := schema.NewDayStats()
		if stored := stats.DailyStats[key]; stored != nil {
			day = stored
		}
		out.Days = append(out.Days, DaySummary{Day: key, Stats: *day})
		out.Totals.ActiveCodingTimeSeconds += day.ActiveCodingTimeSeconds
		out.Totals.FilesSaved += day.FilesSaved
		out.Totals.CodeExecutions += day.CodeExecutions
		out.Totals.AIHelps += day.AIHelps
		out.Totals.AIRefactors += day.AIRefactors
		for lang, secs := range day.TimeByLanguage {
			out.Totals.TimeByLanguage[lang] += secs
		}
	}
	return out, nil
}

// Languages returns language names sorted by descending seconds.
func Languages(day schema.DayStats) []schema.Language {
	langs := make([]schema.Language, 0, len(day.TimeByLanguage))
	for lang := range day.TimeByLanguage {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		a, b := day.TimeByLanguage[langs[i]], day.TimeByLanguage[langs[j]]
		if a != b {
			return a > b
		}
		return langs[i] < langs[j]
	})
	return langs
}

// locked runs fn holding the in-process mutex and the cross-process file
// lock.
func (l *Ledger) locked(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	unlock, err := l.file.Lock()
	if err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	defer unlock()
	return fn()
}

// load must be called with mu held. A missing or malformed file yields
// defaults; any other read failure is returned so callers never persist
// defaults over a ledger they could not read.
func (l *Ledger) load(ctx context.Context) (schema.DeveloperStats, error) {
	var stats schema.DeveloperStats
	ok, err := l.read(&stats)
	if err != nil {
		if errors.Is(err, persist.ErrMalformed) {
			pslog.Ctx(ctx).Warn("ledger state malformed; using defaults", "path", l.file.Path(), "err", err)
			return schema.DefaultDeveloperStats(), nil
		}
		return schema.DeveloperStats{}, fmt.Errorf("load ledger: %w", err)
	}
	if !ok {
		return schema.DefaultDeveloperStats(), nil
	}
	if stats.DailyStats == nil {
		stats.DailyStats = make(map[schema.DateKey]*schema.DayStats)
	}
	return stats, nil
}
