package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pkt.systems/devdeck/core"
	"pkt.systems/devdeck/internal/appconfig"
	"pkt.systems/devdeck/internal/ledger"
	"pkt.systems/devdeck/schema"
)

func TestRootHasSubcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"serve", "config", "stats", "journal", "run", "explain", "doctor", "version"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected root command to include %s", name)
		}
	}
}

func TestToServerConfig(t *testing.T) {
	t.Setenv("DEVDECK_TEST_KEY", "from-env")
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.DataDir = "/tmp/devdeck-data"
	cfg.HTTP.Token = "secret"
	cfg.Shell.Program = "/bin/sh"
	cfg.Runner.MaxConcurrent = 3
	cfg.Runner.Interpreters.Python = "python3.12"
	cfg.Assist.APIKeyEnv = "DEVDECK_TEST_KEY"
	cfg.Assist.TimeoutSeconds = 5
	cfg.Workspace.DebounceMS = 50
	cfg.Journal.Path = "/tmp/devdeck-data/activity.db"

	got := toServerConfig(cfg)
	if got.DataDir != cfg.DataDir || got.HTTP.Addr != cfg.HTTP.Addr || got.HTTP.Token != "secret" {
		t.Fatalf("unexpected http mapping: %+v", got)
	}
	if got.HTTP.Version == "" {
		t.Fatalf("expected version to be set")
	}
	if got.HubHistory != cfg.HTTP.HubHistory {
		t.Fatalf("hub history = %d", got.HubHistory)
	}
	if got.Shell.Program != "/bin/sh" {
		t.Fatalf("shell program = %q", got.Shell.Program)
	}
	if got.Runner.MaxConcurrent != 3 || got.Runner.Interpreters.Python != "python3.12" {
		t.Fatalf("unexpected runner mapping: %+v", got.Runner)
	}
	if got.Assist.APIKey != "from-env" {
		t.Fatalf("api key = %q", got.Assist.APIKey)
	}
	if got.Assist.Timeout != 5*time.Second {
		t.Fatalf("timeout = %s", got.Assist.Timeout)
	}
	if got.Workspace.Debounce != 50*time.Millisecond || !got.Workspace.Watch {
		t.Fatalf("unexpected workspace mapping: %+v", got.Workspace)
	}
	if !got.Journal.Enabled || got.Journal.Path != cfg.Journal.Path {
		t.Fatalf("unexpected journal mapping: %+v", got.Journal)
	}
}

func TestIsLoopback(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1:27481": true,
		"localhost:80":    true,
		"[::1]:9000":      true,
		"127.0.1.1:1":     true,
		"0.0.0.0:27481":   false,
		":27481":          false,
		"10.0.0.5:80":     false,
	}
	for addr, want := range tests {
		if got := isLoopback(addr); got != want {
			t.Fatalf("isLoopback(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestWriterSinkWritesTerminalDataOnly(t *testing.T) {
	var buf bytes.Buffer
	sink := newWriterSink(&buf)
	sink.Publish(schema.UIEvent{Type: schema.UIEventTerminalData, Data: "hello\n"})
	sink.Publish(schema.UIEvent{Type: schema.UIEventTreeChanged, Path: "/tmp"})
	sink.Publish(schema.UIEvent{Type: schema.UIEventTerminalData})
	if got := buf.String(); got != "hello\n" {
		t.Fatalf("sink output = %q", got)
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := map[int64]string{
		0:    "0s",
		59:   "59s",
		61:   "1m01s",
		3600: "1h00m",
		5430: "1h30m",
	}
	for secs, want := range tests {
		if got := formatSeconds(secs); got != want {
			t.Fatalf("formatSeconds(%d) = %q, want %q", secs, got, want)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.Local)
	l, err := ledger.Open(dir, nil, ledger.WithClock(func() time.Time { return day }))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	ctx := context.Background()
	if err := l.Record(ctx, schema.ActivityEvent{Type: schema.ActivityActiveTime, Seconds: 3600, Language: "go"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, schema.ActivityEvent{Type: schema.ActivitySave}); err != nil {
		t.Fatalf("record: %v", err)
	}
	summary, err := l.Summary(ctx, 3)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	var buf bytes.Buffer
	if err := renderSummary(&buf, summary); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"2025-03-04", "2025-03-02", "go", "Streak:", "1h00m"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestConfigInitWritesLoadableFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	root := newRootCmd()
	root.SetArgs([]string{"config", "init", "-o", path})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := appconfig.Load(path); err != nil {
		t.Fatalf("load written config: %v", err)
	}

	root = newRootCmd()
	root.SetArgs([]string{"config", "init", "-o", path})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected error when config exists")
	}
}

func TestRunRejectsUnsupportedFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	script := filepath.Join(t.TempDir(), "main.rb")
	if err := os.WriteFile(script, []byte("puts 1\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"run", "-c", filepath.Join(home, "missing.yaml"), script})
	err := root.ExecuteContext(context.Background())
	var exit exitCodeError
	if !errors.As(err, &exit) || exit.code != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(out.String(), "running '.rb' files is not supported") {
		t.Fatalf("unexpected output: %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(home, ".devdeck", "data", ledger.FileName)); !os.IsNotExist(err) {
		t.Fatalf("rejected run must not be recorded, stat err = %v", err)
	}
}

type stuckJob struct {
	done chan struct{}
}

func (j *stuckJob) ID() schema.JobID       { return "stuck" }
func (j *stuckJob) Path() string           { return "stuck.py" }
func (j *stuckJob) State() schema.JobState { return schema.JobRunning }
func (j *stuckJob) Done() <-chan struct{}  { return j.done }
func (j *stuckJob) ExitCode() (int, bool)  { return 0, false }
func (j *stuckJob) Err() error             { return nil }

var _ core.JobHandle = (*stuckJob)(nil)

type closeFunc func(ctx context.Context) error

func (f closeFunc) Close(ctx context.Context) error { return f(ctx) }

func TestAwaitJobClosesDispatcherOnCancel(t *testing.T) {
	job := &stuckJob{done: make(chan struct{})}
	var closed atomic.Int32
	closer := closeFunc(func(ctx context.Context) error {
		if ctx.Err() != nil {
			t.Errorf("dispatcher closed with a dead context: %v", ctx.Err())
		}
		closed.Add(1)
		close(job.done)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := awaitJob(ctx, job, closer); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if closed.Load() != 1 {
		t.Fatalf("expected dispatcher close, got %d", closed.Load())
	}
}

func TestAwaitJobReturnsWhenJobFinishes(t *testing.T) {
	job := &stuckJob{done: make(chan struct{})}
	close(job.done)
	closer := closeFunc(func(context.Context) error {
		t.Errorf("finished job must not close the dispatcher")
		return nil
	})
	if err := awaitJob(context.Background(), job, closer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()
	script := filepath.Join(dir, "loop.js")
	if err := os.WriteFile(script, []byte("exec sleep 30\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := "config_version: " + strconv.Itoa(appconfig.CurrentConfigVersion) + "\ndata_dir: " + filepath.Join(home, "data") + "\nrunner:\n  interpreters:\n    node: sh\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"run", "-c", cfgPath, script})
	errCh := make(chan error, 1)
	go func() { errCh <- root.ExecuteContext(ctx) }()

	time.Sleep(300 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		var exit exitCodeError
		if !errors.As(err, &exit) || exit.code != exitInterrupted {
			t.Fatalf("expected exit code %d, got %v", exitInterrupted, err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not stop after cancellation")
	}
	if _, err := os.Stat(filepath.Join(home, "data", ledger.FileName)); !os.IsNotExist(err) {
		t.Fatalf("interrupted run must not be recorded, stat err = %v", err)
	}
}

func TestReadSourceFromStdin(t *testing.T) {
	got, err := readSource(strings.NewReader("print(1)\n"), "-")
	if err != nil || got != "print(1)\n" {
		t.Fatalf("readSource = %q, %v", got, err)
	}
	if _, err := readSource(nil, filepath.Join(t.TempDir(), "missing.py")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLanguageFor(t *testing.T) {
	if languageFor("a/b/Main.PY") != "python" || languageFor("x.mjs") != "javascript" || languageFor("x.txt") != "code" {
		t.Fatalf("unexpected language mapping")
	}
}

func TestVersionOutput(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--short"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version: %v", err)
	}
	short := strings.TrimSpace(out.String())
	if !strings.HasPrefix(short, "v") || strings.Contains(short, " ") {
		t.Fatalf("unexpected short version %q", short)
	}

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "devdeck "+short) || lines[1] != "module pkt.systems/devdeck" {
		t.Fatalf("unexpected version output %q", out.String())
	}
}
