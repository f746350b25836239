package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// Load reads the config file, applies defaults and environment overrides.
// A missing file yields defaults. Files ending in .toml are decoded as TOML,
// everything else as YAML.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Defaults(), err
		}
	} else if err := decode(path, data, &cfg); err != nil {
		return Defaults(), &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	cfg.Session.Token = expandEnvVars(cfg.Session.Token)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// LoadRaw reads the YAML config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with defaults.
func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaultAPIBaseURL
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = defaultAPITimeout
	}
	if cfg.API.Retries == 0 {
		cfg.API.Retries = defaultAPIRetries
	}
	if cfg.Socket.URL == "" {
		cfg.Socket.URL = defaultSocketURL
	}
	if cfg.Socket.HeartbeatSeconds == 0 {
		cfg.Socket.HeartbeatSeconds = defaultHeartbeat
	}
	if cfg.Socket.HandshakeSeconds == 0 {
		cfg.Socket.HandshakeSeconds = defaultHandshake
	}
	if cfg.Socket.ReconnectAttempts == 0 {
		cfg.Socket.ReconnectAttempts = defaultReconnects
	}
	if cfg.Socket.ReconnectDelayMs == 0 {
		cfg.Socket.ReconnectDelayMs = defaultReconnectDelay
	}
	if cfg.Socket.ReconnectMaxMs == 0 {
		cfg.Socket.ReconnectMaxMs = defaultReconnectMax
	}
	if cfg.Socket.QueueCap == 0 {
		cfg.Socket.QueueCap = defaultQueueCap
	}
	if cfg.Chat.HistoryPageSize == 0 {
		cfg.Chat.HistoryPageSize = defaultHistoryPageSize
	}
	if cfg.Chat.TypingIdleMs == 0 {
		cfg.Chat.TypingIdleMs = defaultTypingIdle
	}
	if cfg.Chat.PendingTimeoutSeconds == 0 {
		cfg.Chat.PendingTimeoutSeconds = defaultPendingTimeout
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "sqlite"
	}
	if cfg.Session.Profile == "" {
		cfg.Session.Profile = defaultProfile
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads MATCHCHAT_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MATCHCHAT_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("MATCHCHAT_SOCKET_URL"); v != "" {
		cfg.Socket.URL = v
	}
	if v := os.Getenv("MATCHCHAT_HEARTBEAT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Socket.HeartbeatSeconds = n
		}
	}
	if v := os.Getenv("MATCHCHAT_PROFILE"); v != "" {
		cfg.Session.Profile = v
	}
	if v := os.Getenv("MATCHCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
