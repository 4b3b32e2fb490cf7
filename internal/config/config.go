// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage paths, the model client, cache
// TTLs, trial lifecycle, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "ai-gateway")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ModelConfig defines the upstream text-generation provider settings.
type ModelConfig struct {
	BaseURL     string        // MODEL_BASE_URL (OpenAI-compatible endpoint)
	APIKey      string        // MODEL_API_KEY
	Name        string        // MODEL_NAME (e.g. "gpt-4o-mini")
	Timeout     time.Duration // MODEL_TIMEOUT bound on a single upstream call
	MaxTokens   int           // MODEL_MAX_TOKENS (0 lets the provider decide)
	Temperature float64       // MODEL_TEMPERATURE
}

// CacheConfig defines result-cache settings. TTLs are per call class:
// different actions warrant different freshness windows.
type CacheConfig struct {
	RedisAddr     string        // REDIS_ADDR; empty selects the in-memory store
	RedisPassword string        // REDIS_PASSWORD
	RedisDB       int           // REDIS_DB
	SuggestTTL    time.Duration // CACHE_SUGGEST_TTL
	CategorizeTTL time.Duration // CACHE_CATEGORIZE_TTL
	DefaultTTL    time.Duration // CACHE_DEFAULT_TTL for uncatalogued actions
}

// TrialConfig defines subscription trial lifecycle settings.
type TrialConfig struct {
	Duration      time.Duration // TRIAL_DURATION (e.g. 336h = 14 days)
	SweepInterval time.Duration // TRIAL_SWEEP_INTERVAL between expiry sweeps
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 30s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath string // SQLite path

	// Subsystems
	Model ModelConfig
	Cache CacheConfig
	Trial TrialConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS CORSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "gateway.db"),

		Model: ModelConfig{
			BaseURL:     getenv("MODEL_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getenv("MODEL_API_KEY", ""),
			Name:        getenv("MODEL_NAME", "gpt-4o-mini"),
			Timeout:     getdur("MODEL_TIMEOUT", 60*time.Second),
			MaxTokens:   getint("MODEL_MAX_TOKENS", 0),
			Temperature: getfloat("MODEL_TEMPERATURE", 0.2),
		},

		Cache: CacheConfig{
			RedisAddr:     getenv("REDIS_ADDR", ""),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
			SuggestTTL:    getdur("CACHE_SUGGEST_TTL", 24*time.Hour),
			CategorizeTTL: getdur("CACHE_CATEGORIZE_TTL", 7*24*time.Hour),
			DefaultTTL:    getdur("CACHE_DEFAULT_TTL", 6*time.Hour),
		},

		Trial: TrialConfig{
			Duration:      getdur("TRIAL_DURATION", 14*24*time.Hour),
			SweepInterval: getdur("TRIAL_SWEEP_INTERVAL", time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "ai-gateway"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Model.BaseURL = strings.TrimRight(cfg.Model.BaseURL, "/")

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.Model.BaseURL) == "" {
		return cfg, errors.New("MODEL_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.Model.Name) == "" {
		return cfg, errors.New("MODEL_NAME must not be empty")
	}
	if cfg.Model.Timeout <= 0 {
		return cfg, errors.New("MODEL_TIMEOUT must be > 0")
	}
	if cfg.Model.MaxTokens < 0 {
		return cfg, errors.New("MODEL_MAX_TOKENS must be >= 0")
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		return cfg, errors.New("MODEL_TEMPERATURE must be in [0,2]")
	}
	if cfg.Cache.SuggestTTL <= 0 || cfg.Cache.CategorizeTTL <= 0 || cfg.Cache.DefaultTTL <= 0 {
		return cfg, errors.New("cache TTLs must be > 0")
	}
	if cfg.Trial.Duration <= 0 {
		return cfg, errors.New("TRIAL_DURATION must be > 0")
	}
	if cfg.Trial.SweepInterval <= 0 {
		return cfg, errors.New("TRIAL_SWEEP_INTERVAL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
