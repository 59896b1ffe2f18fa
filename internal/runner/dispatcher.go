package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/internal/logx"
	"pkt.systems/devdeck/internal/proc"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

const readBufferSize = 32 * 1024

// Config controls how files are executed.
type Config struct {
	// GOOS selects platform commands. Defaults to runtime.GOOS.
	GOOS string
	// Interpreters overrides interpreter binaries.
	Interpreters Interpreters
	// MaxConcurrent caps running jobs. Zero means unbounded.
	MaxConcurrent int
}

// Dispatcher spawns one-shot processes for user files and streams their
// output to the UI channel. Runs are independent and may overlap.
type Dispatcher struct {
	cfg     Config
	sink    core.EventSink
	log     pslog.Logger
	sem     *semaphore.Weighted
	resolve func(path string) (Plan, error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a dispatcher. Jobs outlive the request that started them
// and are terminated by Close.
func New(cfg Config, sink core.EventSink, logger pslog.Logger) *Dispatcher {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		log:    logger.With("component", "runner"),
		ctx:    ctx,
		cancel: cancel,
	}
	if cfg.MaxConcurrent > 0 {
		d.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	d.resolve = func(path string) (Plan, error) {
		return Resolve(path, d.cfg.GOOS, d.cfg.Interpreters)
	}
	return d
}

// Run starts path and returns immediately. Every outcome, including
// unsupported files and spawn failures, is reported on the UI channel.
func (d *Dispatcher) Run(ctx context.Context, path string) core.JobHandle {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(path) != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	job := newJob(schema.JobID(uuid.NewString()), path)
	log := logx.WithPath(logx.WithJob(ctx, job.id), path)

	plan, err := d.resolve(path)
	if err != nil {
		log.Warn("runner job rejected", "err", err)
		d.diagnostic(job, rejectMessage(path, err))
		job.finish(schema.JobRejected, 0, false, err)
		return job
	}
	job.plan = plan

	if d.sem != nil && !d.sem.TryAcquire(1) {
		log.Warn("runner job rejected", "err", schema.ErrTooManyJobs, "limit", d.cfg.MaxConcurrent)
		d.diagnostic(job, fmt.Sprintf("[error] too many running jobs (limit %d)", d.cfg.MaxConcurrent))
		job.finish(schema.JobRejected, 0, false, schema.ErrTooManyJobs)
		return job
	}

	d.diagnostic(job, fmt.Sprintf("[run] %s (cwd=%s)", plan, plan.Dir))

	cmd := exec.CommandContext(d.ctx, plan.Command, plan.Args...)
	cmd.Dir = plan.Dir
	cmd.Env = proc.Env(nil, plan.Env)
	proc.Configure(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.spawnFailed(job, log, plan, err)
		return job
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		d.spawnFailed(job, log, plan, err)
		return job
	}
	if err := cmd.Start(); err != nil {
		d.spawnFailed(job, log, plan, err)
		return job
	}
	log.Info("runner job started", "type", plan.Type, "command", plan.Command, "args", plan.Args, "dir", plan.Dir, "pid", cmd.Process.Pid)

	d.wg.Add(1)
	go d.supervise(job, cmd, stdout, stderr, log, time.Now())
	return job
}

func rejectMessage(path string, err error) string {
	if errors.Is(err, schema.ErrUnsupportedFileType) {
		ext := strings.ToLower(filepath.Ext(path))
		if ext == "" {
			ext = filepath.Base(path)
		}
		return fmt.Sprintf("[error] running '%s' files is not supported", ext)
	}
	return fmt.Sprintf("[error] cannot run file: %v", err)
}

func (d *Dispatcher) spawnFailed(job *Job, log pslog.Logger, plan Plan, err error) {
	log.Error("runner job start failed", "command", plan.Command, "err", err)
	d.diagnostic(job, fmt.Sprintf("[error] failed to run '%s': %v", plan.Command, err))
	job.finish(schema.JobFailed, 0, false, err)
	d.release()
}

func (d *Dispatcher) supervise(job *Job, cmd *exec.Cmd, stdout, stderr io.Reader, log pslog.Logger, started time.Time) {
	defer d.wg.Done()
	defer d.release()

	var chunks [2]int
	var g errgroup.Group
	g.Go(func() error { return d.pump(job, stdout, &chunks[0]) })
	g.Go(func() error { return d.pump(job, stderr, &chunks[1]) })
	readErr := g.Wait()

	err := cmd.Wait()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	fields := []any{
		"exit_code", exitCode,
		"stdout_chunks", chunks[0],
		"stderr_chunks", chunks[1],
		"duration_ms", time.Since(started).Milliseconds(),
	}
	if readErr != nil {
		fields = append(fields, "read_err", readErr)
	}
	if err != nil {
		log.Warn("runner job finished", append(fields, "err", err)...)
	} else {
		log.Info("runner job finished", fields...)
	}
	d.diagnostic(job, fmt.Sprintf("\n[process exited with code %d]", exitCode))
	job.finish(schema.JobExited, exitCode, true, nil)
}

func (d *Dispatcher) pump(job *Job, reader io.Reader, count *int) error {
	var chunker core.UTF8Chunker
	buf := make([]byte, readBufferSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			*count++
			core.EmitOutput(d.sink, schema.SourceJob, job.id, chunker.Next(buf[:n]))
		}
		if err != nil {
			core.EmitOutput(d.sink, schema.SourceJob, job.id, chunker.Flush())
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (d *Dispatcher) diagnostic(job *Job, line string) {
	core.EmitDiagnostic(d.sink, schema.SourceJob, job.id, line)
}

func (d *Dispatcher) release() {
	if d.sem != nil {
		d.sem.Release(1)
	}
}

// Close terminates running jobs and waits for them to be reaped.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.log.Info("runner jobs stopped")
		return nil
	case <-ctx.Done():
		d.log.Warn("runner stop timed out", "err", ctx.Err())
		return ctx.Err()
	}
}
