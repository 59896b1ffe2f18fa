package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/devdeck/internal/persist"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// FileName is the settings document name inside the data directory.
const FileName = "settings.json"

// Store persists editor settings.
type Store struct {
	mu   sync.Mutex
	file *persist.File
}

// Open constructs a settings store in dir.
func Open(dir string, logger pslog.Logger) (*Store, error) {
	if logger != nil {
		logger = logger.With("component", "settings")
	}
	file, err := persist.NewFileWithLogger(dir, FileName, logger)
	if err != nil {
		return nil, err
	}
	return &Store{file: file}, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.file.Path()
}

// EnsureDefaults writes default settings when the file is absent.
func (s *Store) EnsureDefaults(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file.Exists() {
		return nil
	}
	if err := s.file.Save(schema.DefaultSettings()); err != nil {
		return fmt.Errorf("create settings: %w", err)
	}
	pslog.Ctx(ctx).Info("settings created", "path", s.file.Path())
	return nil
}

// Load returns the stored settings, or defaults when missing or malformed.
func (s *Store) Load(ctx context.Context) schema.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stored schema.Settings
	ok, err := s.file.Load(&stored)
	switch {
	case err != nil && errors.Is(err, persist.ErrMalformed):
		pslog.Ctx(ctx).Warn("settings malformed; using defaults", "path", s.file.Path(), "err", err)
		return schema.DefaultSettings()
	case err != nil:
		pslog.Ctx(ctx).Warn("settings load failed; using defaults", "path", s.file.Path(), "err", err)
		return schema.DefaultSettings()
	case !ok:
		return schema.DefaultSettings()
	}
	return schema.NormalizeSettings(stored)
}

// Save replaces the stored settings and returns what was written.
func (s *Store) Save(ctx context.Context, settings schema.Settings) (schema.Settings, error) {
	settings = schema.NormalizeSettings(settings)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Save(settings); err != nil {
		return schema.Settings{}, fmt.Errorf("persist settings: %w", err)
	}
	pslog.Ctx(ctx).Debug("settings saved", "theme", settings.Theme, "font_size", settings.FontSize)
	return settings, nil
}
