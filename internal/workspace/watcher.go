package workspace

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// Watcher publishes a tree-changed event when anything under root changes.
type Watcher struct {
	root     string
	debounce time.Duration
	sink     core.EventSink
	log      pslog.Logger
	fsw      *fsnotify.Watcher

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// NewWatcher registers root and every non-excluded subdirectory.
func NewWatcher(root string, debounce time.Duration, sink core.EventSink, logger pslog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	w := &Watcher{
		root:     root,
		debounce: debounce,
		sink:     sink,
		log:      logger.With("root", root),
		fsw:      fsw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Start runs the event loop in the background.
func (w *Watcher) Start() {
	w.startOnce.Do(func() {
		go w.loop()
	})
}

// Close stops the loop and releases the OS watch handles.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		// A watcher that never started has no loop to wait for.
		w.startOnce.Do(func() { close(w.done) })
		<-w.done
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && Excluded(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Debug("workspace watch add failed", "path", path, "err", err)
		}
		return nil
	})
}

// insideExcluded reports whether path sits below an excluded directory.
func (w *Watcher) insideExcluded(path string) bool {
	rel, err := filepath.Rel(w.root, filepath.Dir(path))
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if Excluded(part) {
			return true
		}
	}
	return false
}

func (w *Watcher) loop() {
	defer close(w.done)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.insideExcluded(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) && !Excluded(filepath.Base(ev.Name)) {
				_ = w.addTree(ev.Name)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("workspace watch error", "err", err)
		case <-fire:
			fire = nil
			w.log.Debug("workspace tree changed")
			if w.sink != nil {
				w.sink.Publish(schema.UIEvent{Type: schema.UIEventTreeChanged, Source: schema.SourceHost, Path: w.root})
			}
		}
	}
}
