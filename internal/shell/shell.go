package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/internal/proc"
	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

const readBufferSize = 32 * 1024

// drainTimeout bounds how long exit reporting waits for buffered output when a
// background child still holds the output pipe.
const drainTimeout = 500 * time.Millisecond

// Config controls how the shell session is spawned.
type Config struct {
	// Program overrides the platform shell.
	Program string
	// Args overrides the platform shell arguments. Only used with Program.
	Args []string
	// Dir is the working directory. Defaults to the user home directory.
	Dir string
	// Env is layered on top of the UTF-8 overlay.
	Env map[string]string
	// GOOS selects the platform defaults. Defaults to runtime.GOOS.
	GOOS string
}

// DefaultCommand returns the interactive shell and flags for goos.
func DefaultCommand(goos string) (string, []string) {
	if goos == "windows" {
		return "powershell.exe", []string{"-NoLogo", "-NoProfile"}
	}
	return "bash", []string{"-l"}
}

// DefaultEnv is the overlay that keeps child tooling on UTF-8.
func DefaultEnv() map[string]string {
	return map[string]string{
		"PYTHONUTF8":       "1",
		"PYTHONIOENCODING": "utf-8",
		"LANG":             "C.UTF-8",
		"LC_ALL":           "C.UTF-8",
	}
}

// Manager owns the single interactive shell session of the host.
type Manager struct {
	cfg  Config
	sink core.EventSink
	log  pslog.Logger

	inMu sync.Mutex

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	started  bool
	running  bool
	closing  bool
	exitCode int
	done     chan struct{}
}

// NewManager constructs a shell manager that publishes output to sink.
func NewManager(cfg Config, sink core.EventSink, logger pslog.Logger) *Manager {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	return &Manager{
		cfg:  cfg,
		sink: sink,
		log:  logger.With("component", "shell"),
		done: make(chan struct{}),
	}
}

// Start spawns the shell. It may only be called once per Manager; ctx bounds
// the lifetime of the shell process.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		m.log.Warn("shell start rejected", "reason", "already started")
		return errors.New("shell already started")
	}
	m.started = true
	m.mu.Unlock()

	program, args := m.command()
	dir := m.cfg.Dir
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = home
		} else {
			m.log.Warn("shell home lookup failed", "err", err)
		}
	}
	overlay := DefaultEnv()
	for key, value := range m.cfg.Env {
		overlay[key] = value
	}

	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir
	cmd.Env = proc.Env(nil, overlay)
	proc.Configure(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return m.startFailed(program, err)
	}
	reader, writer, err := os.Pipe()
	if err != nil {
		return m.startFailed(program, err)
	}
	// stdout and stderr share one pipe so the OS keeps their interleaving.
	cmd.Stdout = writer
	cmd.Stderr = writer
	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return m.startFailed(program, err)
	}
	_ = writer.Close()

	m.mu.Lock()
	m.cmd = cmd
	m.stdin = stdin
	m.running = true
	m.mu.Unlock()

	m.log.Info("shell started", "program", program, "args", args, "dir", dir, "pid", cmd.Process.Pid)

	readerDone := make(chan struct{})
	go m.forward(reader, readerDone)
	go m.wait(cmd, readerDone, time.Now())
	return nil
}

func (m *Manager) command() (string, []string) {
	if strings.TrimSpace(m.cfg.Program) != "" {
		return m.cfg.Program, append([]string(nil), m.cfg.Args...)
	}
	return DefaultCommand(m.cfg.GOOS)
}

func (m *Manager) startFailed(program string, err error) error {
	m.log.Error("shell start failed", "program", program, "err", err)
	core.EmitDiagnostic(m.sink, schema.SourceHost, "", fmt.Sprintf("[error] failed to start shell '%s': %v", program, err))
	m.mu.Lock()
	close(m.done)
	m.mu.Unlock()
	return fmt.Errorf("start shell %s: %w", program, err)
}

func (m *Manager) forward(reader *os.File, done chan<- struct{}) {
	defer close(done)
	defer func() { _ = reader.Close() }()
	var chunker core.UTF8Chunker
	buf := make([]byte, readBufferSize)
	chunks := 0
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunks++
			core.EmitOutput(m.sink, schema.SourceShell, "", chunker.Next(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				m.log.Warn("shell output read failed", "err", err)
			}
			break
		}
	}
	core.EmitOutput(m.sink, schema.SourceShell, "", chunker.Flush())
	m.log.Debug("shell output closed", "chunks", chunks)
}

func (m *Manager) wait(cmd *exec.Cmd, readerDone <-chan struct{}, started time.Time) {
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
	select {
	case <-readerDone:
	case <-time.After(drainTimeout):
		m.log.Debug("shell output drain timed out")
	}

	m.mu.Lock()
	m.running = false
	m.exitCode = exitCode
	closing := m.closing
	m.mu.Unlock()

	if closing {
		m.log.Info("shell exited", "exit_code", exitCode, "duration_ms", time.Since(started).Milliseconds())
	} else {
		m.log.Warn("shell exited unexpectedly", "exit_code", exitCode, "duration_ms", time.Since(started).Milliseconds(), "err", err)
	}
	core.EmitDiagnostic(m.sink, schema.SourceHost, "", fmt.Sprintf("\n[shell exited with code %d]", exitCode))
	close(m.done)
}

// Send writes line to the shell input, appending a newline when missing.
// Failures are reported on the UI channel, never to the caller.
func (m *Manager) Send(ctx context.Context, line string) {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	m.inMu.Lock()
	defer m.inMu.Unlock()

	m.mu.Lock()
	stdin := m.stdin
	running := m.running && !m.closing
	m.mu.Unlock()
	if stdin == nil || !running {
		m.sendFailed(ctx, schema.ErrShellNotRunning)
		return
	}
	if _, err := io.WriteString(stdin, line); err != nil {
		m.sendFailed(ctx, err)
		return
	}
	pslog.Ctx(ctx).Trace("shell input sent", "bytes", len(line))
}

func (m *Manager) sendFailed(ctx context.Context, err error) {
	pslog.Ctx(ctx).Warn("shell input failed", "err", err)
	core.EmitDiagnostic(m.sink, schema.SourceHost, "", fmt.Sprintf("[error] failed to send command to shell: %v", err))
}

// Running reports whether the shell process is alive.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Done is closed once the shell has exited or failed to start.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// ExitCode returns the shell exit code once it has exited.
func (m *Manager) ExitCode() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.running || m.cmd == nil {
		return 0, false
	}
	return m.exitCode, true
}

// Close stops the shell: it terminates the process group, closes input,
// and kills the group when ctx ends first.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.started || m.cmd == nil {
		m.mu.Unlock()
		return nil
	}
	m.closing = true
	cmd := m.cmd
	stdin := m.stdin
	running := m.running
	m.mu.Unlock()

	if running {
		if err := proc.Terminate(cmd); err != nil && !errors.Is(err, os.ErrProcessDone) {
			m.log.Warn("shell terminate failed", "err", err)
		}
	}
	// Not under inMu: closing the pipe is what releases a Send blocked on
	// a shell that stopped reading its input.
	_ = stdin.Close()
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		m.log.Warn("shell stop timed out; killing", "err", ctx.Err())
		_ = proc.Kill(cmd)
		return ctx.Err()
	}
}
