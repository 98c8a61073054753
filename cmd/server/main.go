package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/auth"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/config"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/crypto"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/db"
	internalhttp "github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/http"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/metrics"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/recommend"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/repository"
	"github.com/vallabhkhomane11/Patient-Risk-Analysis/internal/scoring"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Error("migrations failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	store := repository.NewStore(pool)

	artifacts, err := scoring.LoadArtifacts(cfg.ArtifactsPath)
	if err != nil {
		logger.Error("scoring artifacts failed to load", slog.String("error", err.Error()))
		os.Exit(1)
	}
	scorer := scoring.NewScorer(artifacts)
	logger.Info("scoring artifacts loaded", slog.String("path", cfg.ArtifactsPath))

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = crypto.NewSecret()
		if err != nil {
			logger.Error("signing key generation failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("generated ephemeral signing key; issued tokens will not survive a restart")
	}
	tokens := auth.NewTokenService([]byte(secret), cfg.JWTIssuer, cfg.AccessTokenTTL)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	var cache recommend.Cache
	if cfg.RedisAddr != "" {
		cache = recommend.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.RecommendCacheTTL)
		logger.Info("recommendation cache enabled", slog.String("addr", cfg.RedisAddr))
	}
	client := recommend.NewClient(&http.Client{}, logger, cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.RecommendMaxTokens)
	generator := recommend.NewGenerator(client, cfg.RecommendModels, cfg.RecommendTimeout, cache, collector, logger)

	server := internalhttp.NewServer(cfg, store, tokens, scorer, generator, collector, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("patient-risk-analysis listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
}
