package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if issue, ok := checkURL("api.baseUrl", cfg.API.BaseURL, "http", "https"); !ok {
		issues = append(issues, issue)
	}
	if issue, ok := checkURL("socket.url", cfg.Socket.URL, "ws", "wss"); !ok {
		issues = append(issues, issue)
	}

	positives := []struct {
		path  string
		value int
	}{
		{"api.timeoutSeconds", cfg.API.TimeoutSeconds},
		{"socket.heartbeatSeconds", cfg.Socket.HeartbeatSeconds},
		{"socket.handshakeSeconds", cfg.Socket.HandshakeSeconds},
		{"socket.reconnectAttempts", cfg.Socket.ReconnectAttempts},
		{"socket.reconnectDelayMs", cfg.Socket.ReconnectDelayMs},
		{"socket.queueCap", cfg.Socket.QueueCap},
		{"chat.historyPageSize", cfg.Chat.HistoryPageSize},
		{"chat.typingIdleMs", cfg.Chat.TypingIdleMs},
		{"chat.pendingTimeoutSeconds", cfg.Chat.PendingTimeoutSeconds},
	}
	for _, p := range positives {
		if p.value <= 0 {
			issues = append(issues, ValidationIssue{
				Path:    p.path,
				Message: fmt.Sprintf("must be positive, got %d", p.value),
			})
		}
	}

	if cfg.Socket.ReconnectMaxMs < cfg.Socket.ReconnectDelayMs {
		issues = append(issues, ValidationIssue{
			Path:    "socket.reconnectMaxMs",
			Message: fmt.Sprintf("must be >= reconnectDelayMs (%d), got %d", cfg.Socket.ReconnectDelayMs, cfg.Socket.ReconnectMaxMs),
		})
	}

	validStores := []string{"sqlite", "memory"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	validLogLevels := []string{"silent", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

func checkURL(path, raw string, schemes ...string) (ValidationIssue, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ValidationIssue{Path: path, Message: fmt.Sprintf("invalid URL %q", raw)}, false
	}
	if !slices.Contains(schemes, u.Scheme) {
		return ValidationIssue{
			Path:    path,
			Message: fmt.Sprintf("scheme must be one of %v, got %q", schemes, u.Scheme),
		}, false
	}
	return ValidationIssue{}, true
}
