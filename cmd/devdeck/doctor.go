package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/devdeck/internal/appconfig"
	"pkt.systems/devdeck/internal/runner"
	"pkt.systems/devdeck/internal/shell"
	"pkt.systems/pslog"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var ping bool
	var pingTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run devdeck diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)

			var problems []error
			if err := checkDataDir(cfg.DataDir); err != nil {
				problems = append(problems, err)
			} else {
				logger.Info("doctor data dir ok", "dir", cfg.DataDir)
			}

			program, _ := shell.DefaultCommand(runtime.GOOS)
			if cfg.Shell.Program != "" {
				program = cfg.Shell.Program
			}
			if path, err := exec.LookPath(program); err != nil {
				problems = append(problems, fmt.Errorf("shell %q: %w", program, err))
			} else {
				logger.Info("doctor shell ok", "path", path)
			}

			for _, check := range interpreterChecks(cfg) {
				path, err := exec.LookPath(check.command)
				if err != nil {
					// Missing interpreters only disable their file type.
					logger.Warn("doctor interpreter missing", "type", check.fileType, "command", check.command)
					continue
				}
				logger.Info("doctor interpreter ok", "type", check.fileType, "path", path)
			}

			bridge := newBridge(cmd.Context(), cfg)
			if !bridge.Configured() {
				logger.Warn("doctor assist not configured", "env", cfg.Assist.APIKeyEnv)
			} else if ping {
				ctx, cancel := context.WithTimeout(cmd.Context(), pingTimeout)
				res := bridge.Complete(ctx, "Reply with the single word ok.")
				cancel()
				if !res.Success {
					problems = append(problems, fmt.Errorf("assist ping: %s", res.Message))
				} else {
					logger.Info("doctor assist ok", "model", cfg.Assist.Model)
				}
			} else {
				logger.Info("doctor assist configured", "model", cfg.Assist.Model)
			}

			if err := errors.Join(problems...); err != nil {
				return err
			}
			logger.Info("doctor complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&ping, "ping", false, "send a test prompt to the assistant")
	cmd.Flags().DurationVar(&pingTimeout, "ping-timeout", 30*time.Second, "timeout for the assistant ping")
	return cmd
}

type interpreterCheck struct {
	fileType runner.FileType
	command  string
}

func interpreterChecks(cfg appconfig.Config) []interpreterCheck {
	overrides := toRunnerConfig(cfg).Interpreters
	var checks []interpreterCheck
	for _, probe := range []struct {
		fileType runner.FileType
		file     string
	}{
		{runner.FileTypePython, "probe.py"},
		{runner.FileTypeNode, "probe.js"},
	} {
		plan, err := runner.Resolve(filepath.Join(os.TempDir(), probe.file), runtime.GOOS, overrides)
		if err != nil {
			continue
		}
		checks = append(checks, interpreterCheck{fileType: probe.fileType, command: plan.Command})
	}
	return checks
}

func checkDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
