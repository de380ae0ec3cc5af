// Package logging configures the process-wide structured logger.
//
// Because accessd's request path carries raw passwords, bearer tokens, and
// cookie values through its call stack (the authenticator takes them as
// plain arguments; see internal/auth), every handler built here installs a
// ReplaceAttr that redacts any attribute whose key names a credential,
// regardless of which subsystem logged it. A subsystem author forgetting to
// scrub a credential before calling slog is treated as the common case, not
// the exception.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ridgeline/accessd/internal/config"
)

// redactedKeys names attribute keys whose values must never reach the log
// sink verbatim. Matched case-insensitively against the attr's own key, not
// its group path, so "password", "user.password", and "login_password" all
// redact.
var redactedKeys = []string{
	"password",
	"token",
	"bearer",
	"cookie",
	"cipherkey",
	"cipherkeyhex",
}

const redactedPlaceholder = "REDACTED"

func isRedactedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, bad := range redactedKeys {
		if strings.Contains(lower, bad) {
			return true
		}
	}
	return false
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if isRedactedKey(a.Key) {
		return slog.String(a.Key, redactedPlaceholder)
	}
	return a
}

// New builds a slog.Logger per cfg's level and format, tagged with a
// "component" attribute identifying the process and wired to redact
// credential-shaped attributes before they ever reach the handler's sink.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("logging: unsupported level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redactAttr}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json", "":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("logging: unsupported format %q", cfg.Format)
	}

	return slog.New(handler).With(slog.String("component", "accessd")), nil
}

// ForSubsystem returns a child logger tagged with the given subsystem
// name, the way each of accessd's packages identifies its own log lines.
func ForSubsystem(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String("subsystem", name))
}
