// Command server runs the AI gateway HTTP API.
//
// Startup order: env → config → logging → tracing → database (migrate +
// seed) → cache store → model client → router → HTTP server. Shutdown is
// graceful: in-flight requests drain, then the tracer and database close.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pantryplan/ai-gateway/internal/cache"
	"github.com/pantryplan/ai-gateway/internal/clock"
	"github.com/pantryplan/ai-gateway/internal/config"
	"github.com/pantryplan/ai-gateway/internal/domain"
	httpapi "github.com/pantryplan/ai-gateway/internal/http"
	"github.com/pantryplan/ai-gateway/internal/llm"
	"github.com/pantryplan/ai-gateway/internal/observability"
	"github.com/pantryplan/ai-gateway/internal/repo"
	"github.com/pantryplan/ai-gateway/internal/services"
	"github.com/pantryplan/ai-gateway/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// memCleanupInterval bounds memory growth of the in-process cache store.
const memCleanupInterval = 10 * time.Minute

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	if err := repo.SeedPlans(ctx, db, repo.DefaultPlans()); err != nil {
		log.Fatal().Err(err).Msg("seed plans failed")
	}

	store, closeStore := buildStore(ctx, cfg)
	defer closeStore()

	model := llm.NewOpenAI(llm.Options{
		BaseURL:     cfg.Model.BaseURL,
		APIKey:      cfg.Model.APIKey,
		Model:       cfg.Model.Name,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	})

	clk := clock.System()

	// Trial lifecycle sweep, independent of request traffic.
	subsSvc := &services.SubscriptionService{
		DB:            db,
		Clock:         clk,
		TrialDuration: cfg.Trial.Duration,
		TrialPlan:     domain.PlanPro,
	}
	subsSvc.StartSweeper(ctx, cfg.Trial.SweepInterval)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, store, model, clk, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}

// buildStore selects the cache backend: Redis when configured, in-memory
// otherwise. The in-memory store gets a periodic cleanup goroutine so
// expired entries do not accumulate.
func buildStore(ctx context.Context, cfg config.Config) (cache.Store, func()) {
	if cfg.Cache.RedisAddr != "" {
		r, err := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("redis connect failed")
		}
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("using redis cache store")
		return r, func() { _ = r.Close() }
	}

	m := cache.NewMemory()
	log.Info().Msg("using in-memory cache store")
	go func() {
		ticker := time.NewTicker(memCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupExpired()
			}
		}
	}()
	return m, func() {}
}
