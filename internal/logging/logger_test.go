package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ridgeline/accessd/internal/config"
)

func TestNewAcceptsKnownLevelsAndFormats(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "verbose"})
	require.Error(t, err)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(config.LoggingConfig{Format: "binary"})
	require.Error(t, err)
}

func TestForSubsystemAddsAttribute(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	child := ForSubsystem(logger, "cache_factory")
	require.NotNil(t, child)
}

func TestRedactAttrScrubsCredentialShapedKeys(t *testing.T) {
	cases := []string{"password", "user_password", "Token", "bearer_token", "cookie", "cipherKeyHex"}
	for _, key := range cases {
		a := redactAttr(nil, slog.String(key, "super-secret"))
		require.Equal(t, redactedPlaceholder, a.Value.String(), "key %q should be redacted", key)
	}
}

func TestRedactAttrLeavesUnrelatedKeysAlone(t *testing.T) {
	a := redactAttr(nil, slog.String("username", "alice"))
	require.Equal(t, "alice", a.Value.String())
}

func TestRedactAttrScrubsSensitiveFieldsInJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: redactAttr})
	slog.New(handler).Info("login attempt",
		slog.String("username", "alice"),
		slog.String("password", "hunter2"),
	)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "alice", record["username"])
	require.Equal(t, redactedPlaceholder, record["password"])
}
