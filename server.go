package devdeck

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/httpapi"
	"pkt.systems/devdeck/internal/assist"
	"pkt.systems/devdeck/internal/eventbus"
	"pkt.systems/devdeck/internal/journal"
	"pkt.systems/devdeck/internal/ledger"
	"pkt.systems/devdeck/internal/runner"
	"pkt.systems/devdeck/internal/settings"
	"pkt.systems/devdeck/internal/shell"
	"pkt.systems/devdeck/internal/workspace"
	"pkt.systems/pslog"
)

// Server composes the shell session, job dispatcher, stores, and HTTP API.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	DataDir    string
	HTTP       httpapi.Config
	HubHistory int
	Shell      shell.Config
	Runner     runner.Config
	Assist     AssistConfig
	Journal    JournalConfig
	Workspace  workspace.Config
}

// AssistConfig configures the request bridge.
type AssistConfig struct {
	APIKey             string
	Model              string
	BaseURL            string
	APIVersion         string
	Timeout            time.Duration
	CompletionMaxChars int
}

// JournalConfig configures the activity journal.
type JournalConfig struct {
	Enabled bool
	Path    string
}

// ServerDeps captures optional collaborators.
type ServerDeps struct {
	Logger pslog.Logger
	// Generator replaces the Gemini client when set.
	Generator assist.Generator
	// EventSink mirrors every UI event, in addition to the stream.
	EventSink core.EventSink
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP  bool
	enableShell bool
}

// WithHTTP enables the HTTP API.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithShell starts the interactive shell session.
func WithShell() ServerOption {
	return func(o *serverOptions) { o.enableShell = true }
}

// New constructs a composable devdeck server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && !options.enableShell {
		return nil, errors.New("no services enabled")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("data dir is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	bus := eventbus.New(logger.With("component", "eventbus"), cfg.HubHistory)
	var sink core.EventSink = bus
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{bus, deps.EventSink}}
	}

	var jrnl *journal.Journal
	var ledgerOpts []ledger.Option
	if cfg.Journal.Enabled && cfg.Journal.Path != "" {
		j, err := journal.Open(context.Background(), cfg.Journal.Path, logger)
		if err != nil {
			logger.Warn("journal open failed; continuing without journal", "path", cfg.Journal.Path, "err", err)
		} else {
			jrnl = j
			ledgerOpts = append(ledgerOpts, ledger.WithObserver(j))
		}
	}
	led, err := ledger.Open(cfg.DataDir, logger, ledgerOpts...)
	if err != nil {
		_ = jrnl.Close()
		return nil, err
	}
	store, err := settings.Open(cfg.DataDir, logger)
	if err != nil {
		_ = jrnl.Close()
		return nil, err
	}

	gen := deps.Generator
	if gen == nil && cfg.Assist.APIKey != "" {
		g, err := assist.NewGeminiGenerator(context.Background(), assist.GeminiConfig{
			APIKey:     cfg.Assist.APIKey,
			Model:      cfg.Assist.Model,
			BaseURL:    cfg.Assist.BaseURL,
			APIVersion: cfg.Assist.APIVersion,
		})
		if err != nil {
			logger.Warn("assist client init failed", "err", err)
		} else {
			logger.Info("assist enabled", "model", g.Model())
			gen = g
		}
	}
	if gen == nil {
		logger.Warn("assist disabled", "err", "API key not configured")
	}
	bridge := assist.NewBridge(gen, assist.Config{
		Timeout:            cfg.Assist.Timeout,
		CompletionMaxChars: cfg.Assist.CompletionMaxChars,
	}, logger)

	dispatcher := runner.New(cfg.Runner, sink, logger)
	ws := workspace.New(cfg.Workspace, sink, logger)
	var sh *shell.Manager
	if options.enableShell {
		sh = shell.NewManager(cfg.Shell, sink, logger)
	}

	s := &compositeServer{
		cfg:        cfg,
		options:    options,
		bus:        bus,
		ledger:     led,
		settings:   store,
		journal:    jrnl,
		dispatcher: dispatcher,
		workspace:  ws,
		shell:      sh,
		logger:     logger,
	}
	if options.enableHTTP {
		httpDeps := httpapi.Deps{
			Dispatcher: dispatcher,
			Workspace:  ws,
			Settings:   store,
			Ledger:     led,
			Assistant:  bridge,
			Events:     bus,
		}
		if sh != nil {
			httpDeps.Shell = sh
		}
		s.httpSrv = httpapi.NewServer(cfg.HTTP, httpDeps)
	}
	return s, nil
}

type compositeServer struct {
	cfg        ServerConfig
	options    serverOptions
	bus        *eventbus.Bus
	ledger     *ledger.Ledger
	settings   *settings.Store
	journal    *journal.Journal
	dispatcher *runner.Dispatcher
	workspace  *workspace.Service
	shell      *shell.Manager
	httpSrv    *httpapi.Server
	logger     pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"shell", s.options.enableShell,
		"http_addr", s.cfg.HTTP.Addr,
		"data_dir", s.cfg.DataDir,
		"journal", s.journal != nil,
	)
	if err := s.ledger.EnsureDefaults(s.ctx); err != nil {
		log.Warn("ledger init failed", "err", err)
	}
	if err := s.settings.EnsureDefaults(s.ctx); err != nil {
		log.Warn("settings init failed", "err", err)
	}
	if s.shell != nil {
		// A shell that fails to spawn is reported on the UI channel; the
		// rest of the host keeps serving.
		if err := s.shell.Start(s.ctx); err != nil {
			log.Error("shell start failed", "err", err)
		}
	}
	if s.options.enableHTTP && s.httpSrv != nil {
		go func() {
			if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log.Info("server stop requested")
	if s.shell != nil {
		if err := s.shell.Close(ctx); err != nil {
			log.Warn("server shell close failed", "err", err)
		}
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Close(ctx); err != nil {
			log.Warn("server runner close failed", "err", err)
		}
	}
	if s.workspace != nil {
		if err := s.workspace.Close(); err != nil {
			log.Warn("server watcher close failed", "err", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			log.Warn("server journal close failed", "err", err)
		}
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
