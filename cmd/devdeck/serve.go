package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/devdeck"
	"pkt.systems/devdeck/httpapi"
	"pkt.systems/devdeck/internal/appconfig"
	"pkt.systems/devdeck/internal/assist"
	"pkt.systems/devdeck/internal/runner"
	"pkt.systems/devdeck/internal/shell"
	"pkt.systems/devdeck/internal/version"
	"pkt.systems/devdeck/internal/workspace"
	"pkt.systems/pslog"
)

//go:embed assets/banner.txt
var serveBanner string

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var noBanner bool
	var noShell bool
	var echo bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the devdeck host",
		RunE: func(cmd *cobra.Command, args []string) error {
			logMode := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_MODE")))
			showBanner := !noBanner && logMode != "json" && logMode != "structured"
			if showBanner && serveBanner != "" {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), serveBanner)
			}
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(addr) != "" {
				cfg.HTTP.Addr = addr
			}
			if !isLoopback(cfg.HTTP.Addr) && cfg.HTTP.Token == "" {
				logger.Warn("http api exposed without token", "addr", cfg.HTTP.Addr)
			}

			serverCfg := toServerConfig(cfg)
			deps := devdeck.ServerDeps{Logger: logger}
			if echo {
				deps.EventSink = newWriterSink(cmd.OutOrStdout())
			}
			opts := []devdeck.ServerOption{devdeck.WithHTTP()}
			if !noShell {
				opts = append(opts, devdeck.WithShell())
			}
			server, err := devdeck.New(serverCfg, deps, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "override http.addr")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "disable startup banner")
	cmd.Flags().BoolVar(&noShell, "no-shell", false, "do not start the interactive shell session")
	cmd.Flags().BoolVar(&echo, "echo", false, "mirror terminal output to stdout")
	return cmd
}

func toServerConfig(cfg appconfig.Config) devdeck.ServerConfig {
	return devdeck.ServerConfig{
		DataDir: cfg.DataDir,
		HTTP: httpapi.Config{
			Addr:    cfg.HTTP.Addr,
			Token:   cfg.HTTP.Token,
			Version: version.Current(),
		},
		HubHistory: cfg.HTTP.HubHistory,
		Shell: shell.Config{
			Program: cfg.Shell.Program,
			Args:    cfg.Shell.Args,
			Env:     cfg.Shell.Env,
		},
		Runner:    toRunnerConfig(cfg),
		Assist:    toAssistConfig(cfg),
		Journal:   devdeck.JournalConfig{Enabled: cfg.Journal.Enabled, Path: cfg.Journal.Path},
		Workspace: workspace.Config{Watch: cfg.Workspace.Watch, Debounce: time.Duration(cfg.Workspace.DebounceMS) * time.Millisecond},
	}
}

func toRunnerConfig(cfg appconfig.Config) runner.Config {
	return runner.Config{
		MaxConcurrent: cfg.Runner.MaxConcurrent,
		Interpreters: runner.Interpreters{
			Python: cfg.Runner.Interpreters.Python,
			Node:   cfg.Runner.Interpreters.Node,
		},
	}
}

func toAssistConfig(cfg appconfig.Config) devdeck.AssistConfig {
	return devdeck.AssistConfig{
		APIKey:             assist.ResolveAPIKey(cfg.Assist.APIKeyEnv, cfg.Assist.APIKey),
		Model:              cfg.Assist.Model,
		BaseURL:            cfg.Assist.BaseURL,
		APIVersion:         cfg.Assist.APIVersion,
		Timeout:            time.Duration(cfg.Assist.TimeoutSeconds) * time.Second,
		CompletionMaxChars: cfg.Assist.CompletionMaxChars,
	}
}

// newBridge builds a request bridge for one-shot CLI commands.
func newBridge(ctx context.Context, cfg appconfig.Config) *assist.Bridge {
	logger := pslog.Ctx(ctx)
	ac := toAssistConfig(cfg)
	var gen assist.Generator
	if ac.APIKey != "" {
		g, err := assist.NewGeminiGenerator(ctx, assist.GeminiConfig{
			APIKey:     ac.APIKey,
			Model:      ac.Model,
			BaseURL:    ac.BaseURL,
			APIVersion: ac.APIVersion,
		})
		if err != nil {
			logger.Warn("assist client init failed", "err", err)
		} else {
			gen = g
		}
	}
	return assist.NewBridge(gen, assist.Config{Timeout: ac.Timeout, CompletionMaxChars: ac.CompletionMaxChars}, logger)
}

func isLoopback(addr string) bool {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	host = strings.Trim(host, "[]")
	switch host {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return strings.HasPrefix(host, "127.")
}

