package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setCipherKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACCESSD_TOKEN__CIPHERKEYHEX", validHexKey())
}

func TestLoaderReturnsDefaultsWhenNoOverrides(t *testing.T) {
	setCipherKeyEnv(t)
	loader := NewLoader("ACCESSD")

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Listen.Port)
	require.Equal(t, "memory", cfg.Cache.Backend)
}

func TestLoaderMergesFileOverrides(t *testing.T) {
	setCipherKeyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "accessd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen:\n  port: 9090\n"), 0o600))

	loader := NewLoader("ACCESSD", path)
	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Listen.Port)
}

func TestLoaderPrefersEnvOverridesOverFile(t *testing.T) {
	setCipherKeyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "accessd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen:\n  port: 9090\n"), 0o600))
	t.Setenv("ACCESSD_LISTEN__PORT", "9091")

	loader := NewLoader("ACCESSD", path)
	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9091, cfg.Listen.Port)
}

func TestLoaderRestoresCamelCaseEnvKeys(t *testing.T) {
	setCipherKeyEnv(t)
	t.Setenv("ACCESSD_TOKEN__COOKIENAME", "custom_session")

	loader := NewLoader("ACCESSD")
	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "custom_session", cfg.Token.CookieName)
}

func TestLoaderFailsWhenFileMissing(t *testing.T) {
	setCipherKeyEnv(t)
	dir := t.TempDir()
	loader := NewLoader("ACCESSD", filepath.Join(dir, "missing.yaml"))

	_, err := loader.Load(context.Background())
	require.Error(t, err)
}

func TestLoaderFailsValidationWithoutCipherKey(t *testing.T) {
	loader := NewLoader("ACCESSD")
	_, err := loader.Load(context.Background())
	require.Error(t, err)
}

func TestLoaderParsesJSONFile(t *testing.T) {
	setCipherKeyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "accessd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen": {"port": 9200}}`), 0o600))

	loader := NewLoader("ACCESSD", path)
	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9200, cfg.Listen.Port)
}

func TestLoaderRejectsInvalidMergedConfig(t *testing.T) {
	setCipherKeyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "accessd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: verbose\n"), 0o600))

	loader := NewLoader("ACCESSD", path)
	_, err := loader.Load(context.Background())
	require.Error(t, err)
}
