package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ridgeline/accessd/internal/auth"
	"github.com/ridgeline/accessd/internal/cache"
	"github.com/ridgeline/accessd/internal/config"
	"github.com/ridgeline/accessd/internal/facade"
	"github.com/ridgeline/accessd/internal/logging"
	"github.com/ridgeline/accessd/internal/metrics"
	"github.com/ridgeline/accessd/internal/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to accessd configuration file")
		envPrefix  = flag.String("env-prefix", "ACCESSD", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	cipherKey, err := hex.DecodeString(cfg.Token.CipherKeyHex)
	if err != nil {
		logger.Error("invalid token cipher key", slog.Any("error", err))
		os.Exit(1)
	}
	tokenCipher, err := auth.NewAESGCMCipher(cipherKey)
	if err != nil {
		logger.Error("unable to construct token cipher", slog.Any("error", err))
		os.Exit(1)
	}

	cacheLogger := logging.ForSubsystem(logger, "cache_factory")
	decisionCache := buildDecisionCache(cacheLogger, cfg.Cache)
	cacheTTL := time.Duration(cfg.Cache.TTLSeconds) * time.Second

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	facadeLogger := logging.ForSubsystem(logger, "facade")
	fa, err := facade.New(cfg.Domain.UserFile, cfg.Domain.RoleFile, cfg.Domain.PasswordFile, cfg.Resource.Root, facade.Deps{
		Cipher:                tokenCipher,
		Clock:                 func() int64 { return time.Now().Unix() },
		CookieName:            cfg.Token.CookieName,
		DefaultCookieLifetime: cfg.Token.DefaultCookieLifetime,
		DefaultTokenLifetime:  cfg.Token.DefaultTokenLifetime,
		Cache:                 decisionCache,
		CacheTTL:              cacheTTL,
		Metrics:               metricsRecorder,
		Logger:                facadeLogger,
	})
	if err != nil {
		logger.Error("unable to construct access-decision facade", slog.Any("error", err))
		os.Exit(1)
	}

	store := server.NewResourceStore()
	handler := server.NewHandler(fa, store, logging.ForSubsystem(logger, "server"))

	mux := http.NewServeMux()
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metricsRecorder.Handler())
	}
	mux.Handle("/", handler)

	srv, err := server.New(cfg, logger, mux)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := decisionCache.Close(context.Background()); err != nil {
		logger.Error("cache shutdown failed", slog.Any("error", err))
	}

	logger.Info("server shutdown complete")
}

func buildDecisionCache(logger *slog.Logger, cfg config.CacheConfig) cache.DecisionCache {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		logger.Info("using memory decision cache", slog.Duration("ttl", ttl))
		return cache.NewMemory(ttl)
	case "redis":
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Error("redis cache initialization failed", slog.Any("error", err))
			logger.Info("falling back to memory cache")
			return cache.NewMemory(ttl)
		}
		logger.Info("using redis decision cache", slog.String("address", cfg.Redis.Address))
		return redisCache
	default:
		logger.Warn("unsupported cache backend, defaulting to memory", slog.String("backend", cfg.Backend))
		return cache.NewMemory(ttl)
	}
}
