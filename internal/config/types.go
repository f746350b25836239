package config

// Config is the root configuration for the matchchat client.
type Config struct {
	API     APIConfig     `yaml:"api,omitempty" toml:"api"`
	Socket  SocketConfig  `yaml:"socket,omitempty" toml:"socket"`
	Chat    ChatConfig    `yaml:"chat,omitempty" toml:"chat"`
	Session SessionConfig `yaml:"session,omitempty" toml:"session"`
	Logging LoggingConfig `yaml:"logging,omitempty" toml:"logging"`
}

// APIConfig points at the REST service.
type APIConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty" toml:"base_url"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty" toml:"timeout_seconds"`
	Retries        int    `yaml:"retries,omitempty" toml:"retries"` // read-only calls; negative disables
}

// SocketConfig controls the realtime connection.
type SocketConfig struct {
	URL               string `yaml:"url,omitempty" toml:"url"`
	HeartbeatSeconds  int    `yaml:"heartbeatSeconds,omitempty" toml:"heartbeat_seconds"`
	HandshakeSeconds  int    `yaml:"handshakeSeconds,omitempty" toml:"handshake_seconds"`
	ReconnectAttempts int    `yaml:"reconnectAttempts,omitempty" toml:"reconnect_attempts"`
	ReconnectDelayMs  int    `yaml:"reconnectDelayMs,omitempty" toml:"reconnect_delay_ms"`
	ReconnectMaxMs    int    `yaml:"reconnectMaxMs,omitempty" toml:"reconnect_max_ms"`
	QueueCap          int    `yaml:"queueCap,omitempty" toml:"queue_cap"`
}

// ChatConfig tunes conversation behavior.
type ChatConfig struct {
	HistoryPageSize       int `yaml:"historyPageSize,omitempty" toml:"history_page_size"`
	TypingIdleMs          int `yaml:"typingIdleMs,omitempty" toml:"typing_idle_ms"`
	PendingTimeoutSeconds int `yaml:"pendingTimeoutSeconds,omitempty" toml:"pending_timeout_seconds"`
}

// SessionConfig selects where login credentials live.
type SessionConfig struct {
	Store   string `yaml:"store,omitempty" toml:"store"` // "sqlite" | "memory"
	Profile string `yaml:"profile,omitempty" toml:"profile"`
	Token   string `yaml:"token,omitempty" toml:"token"` // optional ${ENV} override of the stored token
	UserID  string `yaml:"userId,omitempty" toml:"user_id"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty" toml:"level"`                // "silent" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty" toml:"console_style"` // "pretty" | "json"
}
