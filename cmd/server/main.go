package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"printpos/internal/advisor"
	"printpos/internal/app"
	"printpos/internal/cache"
	"printpos/internal/config"
	"printpos/internal/httpapi"
	"printpos/internal/logging"
	"printpos/internal/service"
)

const defaultPasscode = "1234"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Error("invalid security configuration", "error", err)
		os.Exit(1)
	}
	if usesDefaultPasscode(cfg) {
		logger.Warn("auth passcode is the factory default; set PRINTPOS_AUTH_PASSCODE_HASH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	ledger, err := app.OpenLedger(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("ledger unavailable", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	closers = append(closers, ledger.Close)
	logger.Info("ledger ready", "driver", cfg.Database.Driver)

	cacheStore := cache.AdvisoryCache(cache.NoopAdvisoryCache{})
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisAdvisoryCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, advisory answers will not be cached", "error", err)
			_ = redisCache.Close()
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("advisory cache ready", "backend", "redis")
		}
	}

	var completer advisor.Completer = advisor.UnavailableCompleter{}
	gemini, err := advisor.NewGeminiCompleter(ctx, cfg.Advisor.APIKey, cfg.Advisor.Model)
	switch {
	case err == nil:
		completer = gemini
	case errors.Is(err, advisor.ErrUnavailable):
		logger.Info("advisor disabled, no api key configured")
	default:
		logger.Warn("advisor unavailable", "error", err)
	}

	svc := service.New(ledger, logger)
	adv := advisor.New(ledger, completer, cacheStore, advisor.Options{
		CacheTTL: cfg.Advisor.CacheTTL,
		Timeout:  cfg.Advisor.Timeout,
		ShopName: cfg.Advisor.ShopName,
		Logger:   logger,
	})
	auth, err := httpapi.NewAuthManager(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.Passcode, cfg.Auth.PasscodeHash)
	if err != nil {
		logger.Error("auth unavailable", "error", err)
		os.Exit(1)
	}
	api := httpapi.New(svc, adv, auth, httpapi.Options{
		AllowedOrigin: cfg.HTTP.AllowedOrigin,
		MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("printpos listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.Auth.Secret) < 32 {
		return fmt.Errorf("PRINTPOS_AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.Auth.PasscodeHash == "" && cfg.Auth.Passcode == "" {
		return fmt.Errorf("PRINTPOS_AUTH_PASSCODE or PRINTPOS_AUTH_PASSCODE_HASH must be set")
	}
	return nil
}

func usesDefaultPasscode(cfg config.Config) bool {
	return cfg.Auth.PasscodeHash == "" && cfg.Auth.Passcode == defaultPasscode
}
