package httpapi

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

var errUnavailable = errors.New("service unavailable")

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.TerminalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pslog.Ctx(ctx).Warn("http terminal decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Shell == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	s.deps.Shell.Send(ctx, req.Command)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.RunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pslog.Ctx(ctx).Warn("http run decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		writeError(w, http.StatusBadRequest, schema.ErrEmptyPath)
		return
	}
	if s.deps.Dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	job := s.deps.Dispatcher.Run(ctx, req.FilePath)
	writeJSON(w, http.StatusAccepted, schema.RunResponse{JobID: job.ID(), State: job.State()})
}

func (s *Server) handleFileRead(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.FileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Workspace == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Workspace.Read(ctx, req.FilePath))
}

func (s *Server) handleFileWrite(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.WriteFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Workspace == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Workspace.Write(ctx, req.FilePath, req.Content))
}

func (s *Server) handleFileSaveAs(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.WriteFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Workspace == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Workspace.SaveAs(ctx, req.FilePath, req.Content))
}

func (s *Server) handleWorkspaceOpen(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.OpenWorkspaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Workspace == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	root := cleanRoot(req.Path)
	tree, err := s.deps.Workspace.Tree(ctx, root)
	if err != nil {
		pslog.Ctx(ctx).Warn("http workspace open failed", "root", root, "err", err)
		writeError(w, workspaceStatus(err), err)
		return
	}
	if err := s.deps.Workspace.Watch(ctx, root); err != nil {
		pslog.Ctx(ctx).Warn("http workspace watch failed", "root", root, "err", err)
	}
	writeJSON(w, http.StatusOK, schema.WorkspaceResponse{Root: root, Tree: tree})
}

func (s *Server) handleWorkspaceTree(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	if s.deps.Workspace == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	root := cleanRoot(r.URL.Query().Get("path"))
	tree, err := s.deps.Workspace.Tree(ctx, root)
	if err != nil {
		writeError(w, workspaceStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, schema.WorkspaceResponse{Root: root, Tree: tree})
}

func cleanRoot(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func workspaceStatus(err error) int {
	if errors.Is(err, schema.ErrEmptyPath) {
		return http.StatusBadRequest
	}
	return http.StatusNotFound
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Settings.Load(requestContext(r)))
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.Settings
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Settings == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	saved, err := s.deps.Settings.Save(ctx, req)
	if err != nil {
		pslog.Ctx(ctx).Warn("http settings save failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	if s.deps.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	stats, err := s.deps.Ledger.Query(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.Goals
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	if err := s.deps.Ledger.SaveGoals(ctx, req); err != nil {
		pslog.Ctx(ctx).Warn("http goals save failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleActivity accepts fire-and-forget events. Persistence failures are
// logged only; the caller gets 202 either way.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.ActivityEvent
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	if err := s.deps.Ledger.Record(ctx, req); err != nil {
		if errors.Is(err, schema.ErrInvalidActivity) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		pslog.Ctx(ctx).Warn("http activity record failed", "activity", req.Type, "err", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.AssistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Assistant.Explain(ctx, req.Code))
}

func (s *Server) handleRefactor(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.AssistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Assistant == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Assistant.Refactor(ctx, req.Code, req.Language))
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	var req schema.AssistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.deps.Assistant == nil {
		writeJSON(w, http.StatusOK, schema.CompletionResult{})
		return
	}
	writeJSON(w, http.StatusOK, schema.CompletionResult{Completion: s.deps.Assistant.InlineCompletion(ctx, req.Code, req.Language)})
}
