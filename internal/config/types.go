// Package config hydrates accessd's runtime configuration from defaults,
// an optional file, and environment variables, in that precedence order.
package config

import (
	"errors"
	"fmt"
)

// Config is the complete bootstrap configuration for one accessd process.
type Config struct {
	Listen   ListenConfig   `koanf:"listen"`
	Logging  LoggingConfig  `koanf:"logging"`
	Domain   DomainConfig   `koanf:"domain"`
	Resource ResourceConfig `koanf:"resource"`
	Cache    CacheConfig    `koanf:"cache"`
	Token    TokenConfig    `koanf:"token"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DomainConfig points at the three domain text files.
type DomainConfig struct {
	UserFile     string `koanf:"userFile"`
	RoleFile     string `koanf:"roleFile"`
	PasswordFile string `koanf:"passwordFile"`
}

// ResourceConfig points at the resource tree whose directories carry
// ".rbac.txt" rule files.
type ResourceConfig struct {
	Root string `koanf:"root"`
}

// CacheConfig controls the optional decision cache.
type CacheConfig struct {
	Backend    string           `koanf:"backend"` // "memory", "redis", or "" (same as "memory")
	TTLSeconds int              `koanf:"ttlSeconds"`
	Redis      RedisCacheConfig `koanf:"redis"`
}

// RedisCacheConfig configures the Valkey/Redis decision-cache backend.
type RedisCacheConfig struct {
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// TokenConfig controls cookie naming, default lifetimes, and the cipher
// key source for the authenticator's token service.
type TokenConfig struct {
	CookieName            string `koanf:"cookieName"`
	DefaultCookieLifetime int64  `koanf:"defaultCookieLifetimeSeconds"`
	DefaultTokenLifetime  int64  `koanf:"defaultTokenLifetimeSeconds"`
	// CipherKeyHex is the AES-256 key, hex-encoded (32 bytes -> 64 hex chars).
	CipherKeyHex string `koanf:"cipherKeyHex"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// DefaultConfig returns the configuration used when no file or
// environment override is present.
func DefaultConfig() Config {
	return Config{
		Listen: ListenConfig{
			Address: "0.0.0.0",
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Domain: DomainConfig{
			UserFile:     "domain/user.txt",
			RoleFile:     "domain/role.txt",
			PasswordFile: "domain/password.txt",
		},
		Resource: ResourceConfig{
			Root: "resources",
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTLSeconds: 30,
		},
		Token: TokenConfig{
			CookieName:            "authsession",
			DefaultCookieLifetime: 3600,
			DefaultTokenLifetime:  0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks invariants that cannot be expressed as zero-value
// defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Listen.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level invalid: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: logging.format invalid: %q", c.Logging.Format)
	}
	if c.Domain.UserFile == "" || c.Domain.RoleFile == "" || c.Domain.PasswordFile == "" {
		return errors.New("config: domain file paths must all be set")
	}
	if c.Resource.Root == "" {
		return errors.New("config: resource.root must be set")
	}
	switch c.Cache.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("config: cache.backend invalid: %q", c.Cache.Backend)
	}
	if len(c.Token.CipherKeyHex) != 64 {
		return fmt.Errorf("config: token.cipherKeyHex must be 64 hex characters (32 bytes), got %d", len(c.Token.CipherKeyHex))
	}
	return nil
}
