package appconfig

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if cfg.HTTP.Addr != "127.0.0.1:27481" {
		t.Fatalf("expected loopback default addr, got %q", cfg.HTTP.Addr)
	}
	if filepath.Base(cfg.DataDir) != "data" || filepath.Base(filepath.Dir(cfg.DataDir)) != ".devdeck" {
		t.Fatalf("unexpected data dir %q", cfg.DataDir)
	}
	if cfg.Runner.MaxConcurrent != 0 {
		t.Fatalf("expected unbounded jobs by default")
	}
	if cfg.Assist.APIKeyEnv != "GEMINI_API_KEY" || cfg.Assist.Model != "gemini-2.0-flash" {
		t.Fatalf("unexpected assist defaults: %+v", cfg.Assist)
	}
	if !cfg.Journal.Enabled || !cfg.Workspace.Watch {
		t.Fatalf("expected journal and watch enabled by default")
	}
}
