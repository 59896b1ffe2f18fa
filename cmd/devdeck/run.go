package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/internal/appconfig"
	"pkt.systems/devdeck/internal/runner"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// runStopTimeout bounds how long an interrupted run waits for its process
// tree to be reaped.
const runStopTimeout = 5 * time.Second

// exitInterrupted follows the shell convention of 128+SIGINT.
const exitInterrupted = 130

func newRunCmd() *cobra.Command {
	var cfgPath string
	var noRecord bool
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a file with its language runtime",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)
			d := runner.New(toRunnerConfig(cfg), newWriterSink(cmd.OutOrStdout()), logger)

			job := d.Run(ctx, path)
			if err := awaitJob(ctx, job, d); err != nil {
				logger.Warn("run interrupted", "path", path, "err", err)
				return exitCodeError{code: exitInterrupted}
			}
			_ = d.Close(ctx)
			if job.State() != schema.JobRejected && !noRecord {
				recordActivity(cmd.Context(), cfg, schema.ActivityEvent{Type: schema.ActivityExecute})
			}
			switch job.State() {
			case schema.JobRejected, schema.JobFailed:
				return exitCodeError{code: 1}
			}
			if code, ok := job.ExitCode(); ok && code != 0 {
				return exitCodeError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not count the run in activity stats")
	return cmd
}


type dispatcherCloser interface {
	Close(ctx context.Context) error
}

// awaitJob blocks until job finishes. When ctx ends first the dispatcher
// is closed, which kills the process tree, and ctx's error is returned.
func awaitJob(ctx context.Context, job core.JobHandle, d dispatcherCloser) error {
	select {
	case <-job.Done():
		return nil
	case <-ctx.Done():
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), runStopTimeout)
	defer cancel()
	_ = d.Close(stopCtx)
	select {
	case <-job.Done():
	case <-stopCtx.Done():
	}
	return ctx.Err()
}
