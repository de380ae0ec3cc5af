package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates Config respecting defaults < file < env precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader prepares a config hydrator. files are applied in order, each
// overriding the one before; pass none to load defaults and environment
// only.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{envPrefix: envPrefix, files: files}
}

// Load assembles the effective configuration.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		transform := envKeyTransform(l.envPrefix)
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parserFor selects a koanf parser by file extension; unrecognized
// extensions fall back to YAML, which also parses JSON documents.
func parserFor(path string) koanf.Parser {
	switch {
	case strings.HasSuffix(path, ".json"):
		return json.Parser()
	case strings.HasSuffix(path, ".toml"):
		return toml.Parser()
	default:
		return yaml.Parser()
	}
}

// canonicalEnvKeys maps a lower-cased, underscore-collapsed env key back
// to its camelCase koanf path, mirroring the ambiguity that collapsing
// case and stripping underscores otherwise introduces.
var canonicalEnvKeys = map[string]string{
	"domain.userfile":                    "domain.userFile",
	"domain.rolefile":                    "domain.roleFile",
	"domain.passwordfile":                "domain.passwordFile",
	"cache.ttlseconds":                   "cache.ttlSeconds",
	"token.cookiename":                   "token.cookieName",
	"token.defaultcookielifetimeseconds": "token.defaultCookieLifetimeSeconds",
	"token.defaulttokenlifetimeseconds":  "token.defaultTokenLifetimeSeconds",
	"token.cipherkeyhex":                 "token.cipherKeyHex",
}

// envKeyTransform builds the env-var-name-to-koanf-path function: double
// underscores signal nesting and single underscores are dropped
// (ACCESSD_TOKEN__COOKIE_NAME -> token.cookiename), then the lower-cased
// result is checked against canonicalEnvKeys to restore camelCase field
// names (token.cookieName).
func envKeyTransform(prefix string) func(string) string {
	return func(s string) string {
		key := strings.TrimPrefix(s, prefix+"_")
		key = strings.ReplaceAll(key, "__", ".")
		key = strings.ToLower(strings.ReplaceAll(key, "_", ""))
		if mapped, ok := canonicalEnvKeys[key]; ok {
			return mapped
		}
		return key
	}
}

// structToMap flattens DefaultConfig into the nested map shape koanf's
// confmap provider expects.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"listen": map[string]any{
			"address": cfg.Listen.Address,
			"port":    cfg.Listen.Port,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
		"domain": map[string]any{
			"userFile":     cfg.Domain.UserFile,
			"roleFile":     cfg.Domain.RoleFile,
			"passwordFile": cfg.Domain.PasswordFile,
		},
		"resource": map[string]any{
			"root": cfg.Resource.Root,
		},
		"cache": map[string]any{
			"backend":    cfg.Cache.Backend,
			"ttlSeconds": cfg.Cache.TTLSeconds,
			"redis": map[string]any{
				"address":  cfg.Cache.Redis.Address,
				"username": cfg.Cache.Redis.Username,
				"password": cfg.Cache.Redis.Password,
				"db":       cfg.Cache.Redis.DB,
			},
		},
		"token": map[string]any{
			"cookieName":                   cfg.Token.CookieName,
			"defaultCookieLifetimeSeconds": cfg.Token.DefaultCookieLifetime,
			"defaultTokenLifetimeSeconds":  cfg.Token.DefaultTokenLifetime,
			"cipherKeyHex":                 cfg.Token.CipherKeyHex,
		},
		"metrics": map[string]any{
			"enabled": cfg.Metrics.Enabled,
			"path":    cfg.Metrics.Path,
		},
	}
}
