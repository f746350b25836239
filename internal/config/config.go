package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	defaultAPIBaseURL      = "http://localhost:5000/api"
	defaultSocketURL       = "ws://localhost:5000/socket"
	defaultAPITimeout      = 15
	defaultAPIRetries      = 2
	defaultHeartbeat       = 25
	defaultHandshake       = 10
	defaultReconnects      = 5
	defaultReconnectDelay  = 1000
	defaultReconnectMax    = 5000
	defaultQueueCap        = 50
	defaultHistoryPageSize = 50
	defaultTypingIdle      = 1000
	defaultPendingTimeout  = 30
	defaultProfile         = "default"
)

// Defaults returns a Config with every default applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// APIRetries returns how often idempotent REST reads are retried.
func (c Config) APIRetries() int {
	return max(0, c.API.Retries)
}

// APITimeout returns the REST timeout as a duration.
func (c Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Heartbeat returns the keep-alive interval.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.Socket.HeartbeatSeconds) * time.Second
}

// HandshakeTimeout bounds the connect handshake.
func (c Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Socket.HandshakeSeconds) * time.Second
}

// ReconnectDelay is the first backoff interval.
func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Socket.ReconnectDelayMs) * time.Millisecond
}

// ReconnectMax caps the backoff interval.
func (c Config) ReconnectMax() time.Duration {
	return time.Duration(c.Socket.ReconnectMaxMs) * time.Millisecond
}

// TypingIdle is the inactivity window after which typing stops.
func (c Config) TypingIdle() time.Duration {
	return time.Duration(c.Chat.TypingIdleMs) * time.Millisecond
}

// PendingTimeout is how long a send may stay unconfirmed before it is marked failed.
func (c Config) PendingTimeout() time.Duration {
	return time.Duration(c.Chat.PendingTimeoutSeconds) * time.Second
}
