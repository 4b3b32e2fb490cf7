// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, compression,
// CORS, and rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/pantryplan/ai-gateway/internal/cache"
	"github.com/pantryplan/ai-gateway/internal/clock"
	"github.com/pantryplan/ai-gateway/internal/config"
	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/http/handlers"
	"github.com/pantryplan/ai-gateway/internal/http/middleware"
	"github.com/pantryplan/ai-gateway/internal/llm"
	"github.com/pantryplan/ai-gateway/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine, builds the service graph on top of the injected db/cache/model, and
// mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS
//  9. Gzip compression
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store cache.Store, model llm.Client, clk clock.Clock, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 9) Gzip compression (skip the SSE and metrics endpoints)
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics"}),
	))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← db/cache/model
	subsSvc := &services.SubscriptionService{
		DB:            db,
		Clock:         clk,
		TrialDuration: cfg.Trial.Duration,
		TrialPlan:     domain.PlanPro,
	}
	quotaSvc := &services.QuotaService{DB: db, Clock: clk}
	auditSvc := &services.AuditService{DB: db}

	gw := &services.Gateway{
		Subs:         subsSvc,
		Quota:        quotaSvc,
		Audit:        auditSvc,
		Cache:        store,
		Model:        model,
		Clock:        clk,
		ModelTimeout: cfg.Model.Timeout,
		TTLs: map[domain.Action]time.Duration{
			domain.ActionSuggestRecipes:  cfg.Cache.SuggestTTL,
			domain.ActionCategorizeItems: cfg.Cache.CategorizeTTL,
		},
		DefaultTTL: cfg.Cache.DefaultTTL,
	}

	h := &handlers.Handlers{
		Suggest:    &services.SuggestService{Gateway: gw},
		Categorize: &services.CategorizeService{Gateway: gw},
		Import:     &services.ImportService{Gateway: gw},
		Gateway:    gw,
		Subs:       subsSvc,
		Quota:      quotaSvc,
		Audit:      auditSvc,
	}

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// AI pipeline
		api.POST("/ai/suggest-recipes", h.SuggestRecipes)
		api.POST("/ai/categorize", h.CategorizeItems)
		api.POST("/ai/import-recipe", h.ImportRecipe)
		api.POST("/ai/invoke", h.Invoke)

		// Account
		api.GET("/usage", h.GetUsage)
		api.GET("/subscription", h.GetSubscription)
		api.GET("/plans", h.ListPlans)
		api.GET("/audit", h.ListAudit)

		// Operations
		api.POST("/admin/sweep-trials", h.SweepTrials)
	}
}

// limitBody caps the request body size for all endpoints to maxBytes using
// http.MaxBytesReader. Requests exceeding the cap error on body reads.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
