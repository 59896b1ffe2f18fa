package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkt.systems/devdeck/internal/assist"
	"pkt.systems/devdeck/internal/eventbus"
	"pkt.systems/devdeck/internal/ledger"
	"pkt.systems/devdeck/internal/runner"
	"pkt.systems/devdeck/internal/settings"
	"pkt.systems/devdeck/internal/workspace"
	"pkt.systems/devdeck/schema"
)

type fakeShell struct {
	mu    sync.Mutex
	lines []string
}

func (s *fakeShell) Send(_ context.Context, line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

type fakeGenerator struct {
	text string
	err  error
}

func (g fakeGenerator) Generate(context.Context, string) (string, error) {
	return g.text, g.err
}

type harness struct {
	server *Server
	bus    *eventbus.Bus
	shell  *fakeShell
	ledger *ledger.Ledger
	dir    string
}

func newHarness(t *testing.T, cfg Config, gen assist.Generator) *harness {
	t.Helper()
	dir := t.TempDir()
	bus := eventbus.New(nil, 100)
	led, err := ledger.Open(dir, nil)
	require.NoError(t, err)
	store, err := settings.Open(dir, nil)
	require.NoError(t, err)
	disp := runner.New(runner.Config{}, bus, nil)
	t.Cleanup(func() { _ = disp.Close(context.Background()) })
	ws := workspace.New(workspace.Config{}, bus, nil)
	var bridge *assist.Bridge
	if gen != nil {
		bridge = assist.NewBridge(gen, assist.Config{}, nil)
	} else {
		bridge = assist.NewBridge(nil, assist.Config{}, nil)
	}
	sh := &fakeShell{}
	srv := NewServer(cfg, Deps{
		Shell:      sh,
		Dispatcher: disp,
		Workspace:  ws,
		Settings:   store,
		Ledger:     led,
		Assistant:  bridge,
		Events:     bus,
	})
	return &harness{server: srv, bus: bus, shell: sh, ledger: led, dir: dir}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, Config{Version: "v1.2.3", Token: "secret"}, nil)
	rec := h.do(t, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "v1.2.3", body["version"])
}

func TestTokenRequired(t *testing.T) {
	h := newHarness(t, Config{Token: "secret"}, nil)
	rec := h.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/settings?token=secret", nil)
	rec = httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTerminalForwardsCommand(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	rec := h.do(t, http.MethodPost, "/api/terminal", schema.TerminalRequest{Command: "ls -la"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"ls -la"}, h.shell.lines)
}

func TestRejectsUnknownFields(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	rec := h.do(t, http.MethodPost, "/api/terminal", map[string]any{"cmd": "ls"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request")
}

func TestRunUnsupportedFileEmitsDiagnostic(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	ch, cancel, _ := h.bus.Subscribe()
	defer cancel()

	rec := h.do(t, http.MethodPost, "/api/run", schema.RunRequest{FilePath: filepath.Join(h.dir, "main.rb")})
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[schema.RunResponse](t, rec)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, schema.JobRejected, resp.State)

	select {
	case ev := <-ch:
		assert.Equal(t, schema.UIEventTerminalData, ev.Type)
		assert.Equal(t, "[error] running '.rb' files is not supported\n", ev.Data)
		assert.Equal(t, resp.JobID, ev.JobID)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected diagnostic event")
	}
}

func TestRunRequiresPath(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	rec := h.do(t, http.MethodPost, "/api/run", schema.RunRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileRoundTrip(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	path := filepath.Join(h.dir, "hello.py")
	rec := h.do(t, http.MethodPost, "/api/files/write", schema.WriteFileRequest{FilePath: path, Content: "print(1)"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[schema.FileResult](t, rec).Success)

	rec = h.do(t, http.MethodPost, "/api/files/read", schema.FileRequest{FilePath: path})
	res := decode[schema.FileResult](t, rec)
	require.True(t, res.Success)
	assert.Equal(t, "print(1)", res.Content)

	rec = h.do(t, http.MethodPost, "/api/files/save-as", schema.WriteFileRequest{FilePath: "", Content: "x"})
	res = decode[schema.FileResult](t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, "save canceled", res.Message)
}

func TestWorkspaceOpenAndTree(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	root := filepath.Join(h.dir, "project")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), nil, 0o644))

	rec := h.do(t, http.MethodPost, "/api/workspace/open", schema.OpenWorkspaceRequest{Path: root})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[schema.WorkspaceResponse](t, rec)
	assert.Equal(t, root, resp.Root)
	require.Len(t, resp.Tree, 2)
	assert.Equal(t, "src", resp.Tree[0].Name)

	rec = h.do(t, http.MethodGet, "/api/workspace/tree?path="+url.QueryEscape(root), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/workspace/tree?path="+url.QueryEscape(filepath.Join(root, "missing")), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	rec := h.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, schema.DefaultSettings(), decode[schema.Settings](t, rec))

	rec = h.do(t, http.MethodPut, "/api/settings", schema.Settings{Theme: "light", FontSize: 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schema.Settings{Theme: "light", FontSize: 14}, decode[schema.Settings](t, rec))

	rec = h.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, schema.ThemeName("light"), decode[schema.Settings](t, rec).Theme)
}

func TestActivityGoalsAndStats(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	rec := h.do(t, http.MethodPut, "/api/goals", schema.Goals{DailyCodingTimeGoalSeconds: 60})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/activity", schema.ActivityEvent{Type: schema.ActivityActiveTime, Seconds: 60, Language: "go"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = h.do(t, http.MethodPost, "/api/activity", schema.ActivityEvent{Type: "aiHelp"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/activity", schema.ActivityEvent{Type: "nap"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[schema.DeveloperStats](t, rec)
	day := stats.DailyStats[ledger.DayKey(time.Now())]
	require.NotNil(t, day)
	assert.Equal(t, int64(60), day.ActiveCodingTimeSeconds)
	assert.Equal(t, int64(1), day.AIHelps)
	assert.Equal(t, 1, stats.CodingStreak.Current)
	assert.Equal(t, int64(60), stats.UserGoals.DailyCodingTimeGoalSeconds)
}

func TestAssistRateLimited(t *testing.T) {
	h := newHarness(t, Config{}, fakeGenerator{err: &assist.StatusError{Code: 429, Message: "Resource has been exhausted"}})
	rec := h.do(t, http.MethodPost, "/api/assist/explain", schema.AssistRequest{Code: "x = 1"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[schema.AssistResult](t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, schema.AssistFailureRateLimit, res.Kind)
	assert.Equal(t, "rate limit reached", res.Message)

	rec = h.do(t, http.MethodPost, "/api/assist/complete", schema.AssistRequest{Code: "x", Language: "python"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"completion":null}`, rec.Body.String())
}

func TestAssistNotConfigured(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	rec := h.do(t, http.MethodPost, "/api/assist/refactor", schema.AssistRequest{Code: "x", Language: "go"})
	res := decode[schema.RefactorResult](t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, schema.AssistFailureConfig, res.Kind)
	assert.Equal(t, "API key not configured", res.Message)
}

func TestAssistRefactorAndComplete(t *testing.T) {
	h := newHarness(t, Config{}, fakeGenerator{text: "```go\nx := 2\n```"})
	rec := h.do(t, http.MethodPost, "/api/assist/refactor", schema.AssistRequest{Code: "x := 1", Language: "go"})
	res := decode[schema.RefactorResult](t, rec)
	require.True(t, res.Success)
	assert.Equal(t, "x := 2", res.Code)

	rec = h.do(t, http.MethodPost, "/api/assist/complete", schema.AssistRequest{Code: "x :=", Language: "go"})
	assert.JSONEq(t, `{"completion":"x := 2"}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	rec := h.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = h.do(t, http.MethodDelete, "/api/settings", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func readEvent(t *testing.T, reader *bufio.Reader) (string, schema.UIEvent) {
	t.Helper()
	var id string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "id: "):
			id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "data: "):
			var ev schema.UIEvent
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			return id, ev
		}
	}
}

func TestStreamDeliversAndReplays(t *testing.T) {
	h := newHarness(t, Config{}, nil)
	ts := httptest.NewServer(h.server.Handler())
	defer ts.Close()

	h.bus.Publish(schema.UIEvent{Type: schema.UIEventTerminalData, Source: schema.SourceShell, Data: "one"})
	h.bus.Publish(schema.UIEvent{Type: schema.UIEventTerminalData, Source: schema.SourceShell, Data: "two"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	id, ev := readEvent(t, reader)
	assert.Equal(t, "2", id)
	assert.Equal(t, "two", ev.Data)

	h.bus.Publish(schema.UIEvent{Type: schema.UIEventTerminalData, Source: schema.SourceJob, JobID: "j1", Data: "three"})
	id, ev = readEvent(t, reader)
	assert.Equal(t, "3", id)
	assert.Equal(t, "three", ev.Data)
	assert.Equal(t, schema.JobID("j1"), ev.JobID)
}

// scriptedStream delivers a fixed channel content, simulating a subscriber
// whose buffer overflowed, while Replay serves the retained history.
type scriptedStream struct {
	delivered []schema.UIEvent
	history   []schema.UIEvent
}

func (s *scriptedStream) Subscribe() (<-chan schema.UIEvent, func(), uint64) {
	ch := make(chan schema.UIEvent, len(s.delivered))
	for _, ev := range s.delivered {
		ch <- ev
	}
	close(ch)
	return ch, func() {}, 0
}

func (s *scriptedStream) Replay(after uint64) []schema.UIEvent {
	var out []schema.UIEvent
	for _, ev := range s.history {
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	return out
}

func seqEvents(from, to uint64) []schema.UIEvent {
	var out []schema.UIEvent
	for seq := from; seq <= to; seq++ {
		out = append(out, schema.UIEvent{Seq: seq, Type: schema.UIEventTerminalData, Source: schema.SourceJob, Data: fmt.Sprintf("chunk-%d", seq)})
	}
	return out
}

type sseFrame struct {
	id    string
	event schema.UIEvent
}

func streamFrames(t *testing.T, events EventStream) []sseFrame {
	t.Helper()
	srv := NewServer(Config{}, Deps{Events: events})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var frames []sseFrame
	for _, block := range strings.Split(rec.Body.String(), "\n\n") {
		var frame sseFrame
		found := false
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "id: "):
				frame.id = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame.event))
				found = true
			}
		}
		if found {
			frames = append(frames, frame)
		}
	}
	return frames
}

func TestStreamRecoversDroppedEventsFromHistory(t *testing.T) {
	all := seqEvents(1, 300)
	events := &scriptedStream{
		delivered: []schema.UIEvent{all[0], all[1], all[299]},
		history:   all,
	}
	frames := streamFrames(t, events)
	require.Len(t, frames, 300)
	for i, frame := range frames {
		want := uint64(i + 1)
		assert.Equal(t, fmt.Sprint(want), frame.id)
		assert.Equal(t, fmt.Sprintf("chunk-%d", want), frame.event.Data)
	}
}

func TestStreamReportsEventsEvictedFromHistory(t *testing.T) {
	all := seqEvents(1, 300)
	events := &scriptedStream{
		delivered: []schema.UIEvent{all[0], all[1], all[299]},
		history:   all[199:],
	}
	frames := streamFrames(t, events)
	require.Len(t, frames, 2+1+101)
	assert.Equal(t, "1", frames[0].id)
	assert.Equal(t, "2", frames[1].id)

	notice := frames[2]
	assert.Empty(t, notice.id)
	assert.Equal(t, schema.SourceHost, notice.event.Source)
	assert.Contains(t, notice.event.Data, "197 output events were dropped")

	for i, frame := range frames[3:] {
		assert.Equal(t, fmt.Sprint(200+i), frame.id)
	}
}
