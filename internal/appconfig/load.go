package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.token", cfg.HTTP.Token)
	v.SetDefault("http.hub_history", cfg.HTTP.HubHistory)
	v.SetDefault("shell.program", cfg.Shell.Program)
	v.SetDefault("shell.args", cfg.Shell.Args)
	v.SetDefault("shell.env", cfg.Shell.Env)
	v.SetDefault("runner.max_concurrent", cfg.Runner.MaxConcurrent)
	v.SetDefault("runner.interpreters.python", cfg.Runner.Interpreters.Python)
	v.SetDefault("runner.interpreters.node", cfg.Runner.Interpreters.Node)
	v.SetDefault("assist.api_key_env", cfg.Assist.APIKeyEnv)
	v.SetDefault("assist.api_key", cfg.Assist.APIKey)
	v.SetDefault("assist.model", cfg.Assist.Model)
	v.SetDefault("assist.base_url", cfg.Assist.BaseURL)
	v.SetDefault("assist.api_version", cfg.Assist.APIVersion)
	v.SetDefault("assist.timeout_seconds", cfg.Assist.TimeoutSeconds)
	v.SetDefault("assist.completion_max_chars", cfg.Assist.CompletionMaxChars)
	v.SetDefault("journal.enabled", cfg.Journal.Enabled)
	v.SetDefault("journal.path", cfg.Journal.Path)
	v.SetDefault("workspace.watch", cfg.Workspace.Watch)
	v.SetDefault("workspace.debounce_ms", cfg.Workspace.DebounceMS)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if strings.TrimSpace(cfg.Journal.Path) == "" {
		cfg.Journal.Path = filepath.Join(cfg.DataDir, "activity.db")
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if _, _, err := net.SplitHostPort(strings.TrimSpace(cfg.HTTP.Addr)); err != nil {
		return fmt.Errorf("http.addr must be host:port: %w", err)
	}
	if cfg.HTTP.HubHistory < 0 {
		return fmt.Errorf("http.hub_history must not be negative")
	}
	if cfg.Runner.MaxConcurrent < 0 {
		return fmt.Errorf("runner.max_concurrent must not be negative")
	}
	if cfg.Assist.TimeoutSeconds < 0 {
		return fmt.Errorf("assist.timeout_seconds must not be negative")
	}
	if cfg.Assist.CompletionMaxChars < 0 {
		return fmt.Errorf("assist.completion_max_chars must not be negative")
	}
	if baseURL := strings.TrimSpace(cfg.Assist.BaseURL); baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("assist.base_url must include scheme and host (e.g. https://example.com)")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.DataDir = expandEnv(cfg.DataDir)
	cfg.Shell.Program = expandEnv(cfg.Shell.Program)
	cfg.Runner.Interpreters.Python = expandEnv(cfg.Runner.Interpreters.Python)
	cfg.Runner.Interpreters.Node = expandEnv(cfg.Runner.Interpreters.Node)
	cfg.Journal.Path = expandEnv(cfg.Journal.Path)
	// viper lowercases map keys; environment names are restored to upper case.
	env := make(map[string]string, len(cfg.Shell.Env))
	for key, value := range cfg.Shell.Env {
		env[strings.ToUpper(key)] = expandEnv(value)
	}
	cfg.Shell.Env = env
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
