package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("expected version %d, got %d", CurrentConfigVersion, cfg.ConfigVersion)
	}
	if cfg.Journal.Path != filepath.Join(cfg.DataDir, "activity.db") {
		t.Fatalf("expected journal under data dir, got %q", cfg.Journal.Path)
	}
}

func TestLoadOverridesAndExpansion(t *testing.T) {
	t.Setenv("DEVDECK_TEST_ROOT", "/srv/devdeck")
	path := writeConfig(t, `
config_version: 1
data_dir: $DEVDECK_TEST_ROOT/data
http:
  addr: 127.0.0.1:9999
  token: secret
shell:
  program: /bin/zsh
  args: ["-l"]
  env:
    EDITOR: vim
runner:
  max_concurrent: 4
  interpreters:
    python: $DEVDECK_TEST_ROOT/bin/python
assist:
  model: gemini-test
workspace:
  debounce_ms: 50
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/srv/devdeck/data" {
		t.Fatalf("expected expanded data dir, got %q", cfg.DataDir)
	}
	if cfg.Journal.Path != "/srv/devdeck/data/activity.db" {
		t.Fatalf("expected journal in data dir, got %q", cfg.Journal.Path)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9999" || cfg.HTTP.Token != "secret" || cfg.HTTP.HubHistory != 1000 {
		t.Fatalf("unexpected http config: %+v", cfg.HTTP)
	}
	if cfg.Shell.Program != "/bin/zsh" || len(cfg.Shell.Args) != 1 || cfg.Shell.Env["EDITOR"] != "vim" {
		t.Fatalf("unexpected shell config: %+v", cfg.Shell)
	}
	if cfg.Runner.MaxConcurrent != 4 || cfg.Runner.Interpreters.Python != "/srv/devdeck/bin/python" {
		t.Fatalf("unexpected runner config: %+v", cfg.Runner)
	}
	if cfg.Assist.Model != "gemini-test" || cfg.Assist.APIVersion != "v1" {
		t.Fatalf("unexpected assist config: %+v", cfg.Assist)
	}
	if cfg.Workspace.DebounceMS != 50 || !cfg.Workspace.Watch {
		t.Fatalf("unexpected workspace config: %+v", cfg.Workspace)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: 127.0.0.1:1
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 7
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"http.addr":                   "config_version: 1\nhttp:\n  addr: nope\n",
		"runner.max_concurrent":       "config_version: 1\nrunner:\n  max_concurrent: -1\n",
		"assist.base_url":             "config_version: 1\nassist:\n  base_url: example.com\n",
		"assist.completion_max_chars": "config_version: 1\nassist:\n  completion_max_chars: -5\n",
	}
	for field, content := range cases {
		path := writeConfig(t, content)
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), field) {
			t.Fatalf("expected %s error, got %v", field, err)
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
