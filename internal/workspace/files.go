package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/internal/logx"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// DefaultDebounce coalesces bursts of file system events.
const DefaultDebounce = 200 * time.Millisecond

// Config tunes the workspace service.
type Config struct {
	Watch    bool
	Debounce time.Duration
}

// Service implements file access and tree listing for the editor.
type Service struct {
	cfg  Config
	sink core.EventSink
	log  pslog.Logger

	mu      sync.Mutex
	watcher *Watcher
}

// New constructs a workspace service publishing tree changes to sink.
func New(cfg Config, sink core.EventSink, logger pslog.Logger) *Service {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Service{cfg: cfg, sink: sink, log: logger.With("component", "workspace")}
}

// Read returns the content of path.
func (s *Service) Read(ctx context.Context, path string) schema.FileResult {
	if strings.TrimSpace(path) == "" {
		return schema.FileResult{Message: schema.ErrEmptyPath.Error()}
	}
	log := logx.WithPath(pslog.Ctx(ctx), path)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("workspace read failed", "err", err)
		return schema.FileResult{FilePath: path, Message: fmt.Sprintf("could not read file: %v", err)}
	}
	log.Debug("workspace read ok", "bytes", len(data))
	return schema.FileResult{Success: true, Content: string(data), FilePath: path}
}

// Write overwrites path with content.
func (s *Service) Write(ctx context.Context, path, content string) schema.FileResult {
	if strings.TrimSpace(path) == "" {
		return schema.FileResult{Message: schema.ErrEmptyPath.Error()}
	}
	log := logx.WithPath(pslog.Ctx(ctx), path)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		log.Warn("workspace write failed", "err", err)
		return schema.FileResult{FilePath: path, Message: fmt.Sprintf("could not save file: %v", err)}
	}
	log.Debug("workspace write ok", "bytes", len(content))
	return schema.FileResult{Success: true, FilePath: path}
}

// SaveAs writes content to a path chosen by the user. An empty path means
// the dialog was canceled.
func (s *Service) SaveAs(ctx context.Context, path, content string) schema.FileResult {
	if strings.TrimSpace(path) == "" {
		return schema.FileResult{Message: "save canceled"}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return schema.FileResult{FilePath: path, Message: fmt.Sprintf("could not save file: %v", err)}
		}
	}
	return s.Write(ctx, path, content)
}

// Watch starts watching root for changes, replacing any earlier watch.
// It is a no-op when watching is disabled.
func (s *Service) Watch(ctx context.Context, root string) error {
	if !s.cfg.Watch {
		return nil
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", root)
	}
	w, err := NewWatcher(root, s.cfg.Debounce, s.sink, s.log)
	if err != nil {
		return err
	}
	s.mu.Lock()
	prev := s.watcher
	s.watcher = w
	s.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	w.Start()
	pslog.Ctx(ctx).Info("workspace watch started", "root", root)
	return nil
}

// Close stops the active watcher, if any.
func (s *Service) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

// Watching returns the currently watched root.
func (s *Service) Watching() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return ""
	}
	return s.watcher.Root()
}

var errNotDir = errors.New("not a directory")
