package appconfig

import (
	"os"
	"path/filepath"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	DataDir       string          `mapstructure:"data_dir" yaml:"data_dir"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
	Shell         ShellConfig     `mapstructure:"shell" yaml:"shell"`
	Runner        RunnerConfig    `mapstructure:"runner" yaml:"runner"`
	Assist        AssistConfig    `mapstructure:"assist" yaml:"assist"`
	Journal       JournalConfig   `mapstructure:"journal" yaml:"journal"`
	Workspace     WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// HTTPConfig configures the local HTTP API.
type HTTPConfig struct {
	Addr       string `mapstructure:"addr" yaml:"addr"`
	Token      string `mapstructure:"token" yaml:"token"`
	HubHistory int    `mapstructure:"hub_history" yaml:"hub_history"`
}

// ShellConfig overrides the interactive shell command.
type ShellConfig struct {
	Program string            `mapstructure:"program" yaml:"program"`
	Args    []string          `mapstructure:"args" yaml:"args"`
	Env     map[string]string `mapstructure:"env" yaml:"env"`
}

// RunnerConfig configures execution jobs.
type RunnerConfig struct {
	MaxConcurrent int                `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	Interpreters  InterpretersConfig `mapstructure:"interpreters" yaml:"interpreters"`
}

// InterpretersConfig overrides interpreter binaries.
type InterpretersConfig struct {
	Python string `mapstructure:"python" yaml:"python"`
	Node   string `mapstructure:"node" yaml:"node"`
}

// AssistConfig configures the text generation bridge.
type AssistConfig struct {
	APIKeyEnv          string `mapstructure:"api_key_env" yaml:"api_key_env"`
	APIKey             string `mapstructure:"api_key" yaml:"api_key"`
	Model              string `mapstructure:"model" yaml:"model"`
	BaseURL            string `mapstructure:"base_url" yaml:"base_url"`
	APIVersion         string `mapstructure:"api_version" yaml:"api_version"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	CompletionMaxChars int    `mapstructure:"completion_max_chars" yaml:"completion_max_chars"`
}

// JournalConfig controls the SQLite activity journal. An empty path means
// activity.db inside data_dir.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// WorkspaceConfig controls the workspace tree watcher.
type WorkspaceConfig struct {
	Watch      bool `mapstructure:"watch" yaml:"watch"`
	DebounceMS int  `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	dataDir := filepath.Join(home, ".devdeck", "data")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		DataDir:       dataDir,
		HTTP: HTTPConfig{
			Addr:       "127.0.0.1:27481",
			Token:      "",
			HubHistory: 1000,
		},
		Shell: ShellConfig{
			Program: "",
			Args:    []string{},
			Env:     map[string]string{},
		},
		Runner: RunnerConfig{
			MaxConcurrent: 0,
		},
		Assist: AssistConfig{
			APIKeyEnv:          "GEMINI_API_KEY",
			APIKey:             "",
			Model:              "gemini-2.0-flash",
			BaseURL:            "",
			APIVersion:         "v1",
			TimeoutSeconds:     60,
			CompletionMaxChars: 1500,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "",
		},
		Workspace: WorkspaceConfig{
			Watch:      true,
			DebounceMS: 200,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".devdeck", "config.yaml"), nil
}
