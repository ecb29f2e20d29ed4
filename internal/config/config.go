// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database location, the provider connection, both worker queues'
// tuning knobs, rate limiting, and observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider transport modes.
const (
	TransportWebhook = "webhook"
	TransportPoll    = "poll"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-venue-relay")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BotConfig defines the connection to the external messaging provider.
type BotConfig struct {
	APIBase     string        // BOT_API_BASE, e.g. "https://api.example.org"
	Token       string        // BOT_TOKEN, secret path segment
	CallTimeout time.Duration // BOT_CALL_TIMEOUT, per outbound call
	Transport   string        // BOT_TRANSPORT: webhook | poll
	PollTimeout time.Duration // BOT_POLL_TIMEOUT, server-side long-poll wait
}

// InboundConfig tunes the inbound queue worker.
type InboundConfig struct {
	BatchSize    int           // INBOUND_BATCH_SIZE
	PollInterval time.Duration // INBOUND_POLL_INTERVAL
	RetryDelay   time.Duration // INBOUND_RETRY_DELAY
	MaxAttempts  int           // INBOUND_MAX_ATTEMPTS
}

// OutboxConfig tunes the outbox delivery worker.
type OutboxConfig struct {
	BatchSize    int           // OUTBOX_BATCH_SIZE
	Concurrency  int           // OUTBOX_CONCURRENCY
	PollInterval time.Duration // OUTBOX_POLL_INTERVAL
	BaseBackoff  time.Duration // OUTBOX_BASE_BACKOFF
	MaxBackoff   time.Duration // OUTBOX_MAX_BACKOFF
	MaxAttempts  int           // OUTBOX_MAX_ATTEMPTS
	SendRPS      float64       // SEND_RPS, local admission ceiling
	SendBurst    int           // SEND_BURST
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath        string        // SQLite path
	ClaimPruneAge time.Duration // idempotency claims older than this are pruned

	// Edge rate limiting (webhook/ops endpoints)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Relay
	Bot     BotConfig
	Inbound InboundConfig
	Outbox  OutboxConfig

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
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:        getenv("DB_PATH", "relay.db"),
		ClaimPruneAge: getdur("CLAIM_PRUNE_AGE", 14*24*time.Hour),

		// Edge rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Provider
		Bot: BotConfig{
			APIBase:     getenv("BOT_API_BASE", "https://api.telegram.org"),
			Token:       getenv("BOT_TOKEN", ""),
			CallTimeout: getdur("BOT_CALL_TIMEOUT", 30*time.Second),
			Transport:   strings.ToLower(getenv("BOT_TRANSPORT", TransportWebhook)),
			PollTimeout: getdur("BOT_POLL_TIMEOUT", 25*time.Second),
		},

		// Inbound queue worker
		Inbound: InboundConfig{
			BatchSize:    getint("INBOUND_BATCH_SIZE", 50),
			PollInterval: getdur("INBOUND_POLL_INTERVAL", time.Second),
			RetryDelay:   getdur("INBOUND_RETRY_DELAY", 30*time.Second),
			MaxAttempts:  getint("INBOUND_MAX_ATTEMPTS", 5),
		},

		// Outbox delivery worker
		Outbox: OutboxConfig{
			BatchSize:    getint("OUTBOX_BATCH_SIZE", 50),
			Concurrency:  getint("OUTBOX_CONCURRENCY", 4),
			PollInterval: getdur("OUTBOX_POLL_INTERVAL", time.Second),
			BaseBackoff:  getdur("OUTBOX_BASE_BACKOFF", 5*time.Second),
			MaxBackoff:   getdur("OUTBOX_MAX_BACKOFF", 10*time.Minute),
			MaxAttempts:  getint("OUTBOX_MAX_ATTEMPTS", 8),
			SendRPS:      getfloat("SEND_RPS", 25.0),
			SendBurst:    getint("SEND_BURST", 5),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-venue-relay"),
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
	if cfg.ClaimPruneAge <= 0 {
		return cfg, errors.New("CLAIM_PRUNE_AGE must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	switch cfg.Bot.Transport {
	case TransportWebhook, TransportPoll:
	default:
		return cfg, errors.New("BOT_TRANSPORT must be webhook or poll")
	}
	if cfg.Bot.CallTimeout <= 0 || cfg.Bot.PollTimeout <= 0 {
		return cfg, errors.New("provider timeouts must be positive durations")
	}
	if cfg.Inbound.BatchSize < 1 || cfg.Outbox.BatchSize < 1 {
		return cfg, errors.New("batch sizes must be >= 1")
	}
	if cfg.Inbound.MaxAttempts < 1 || cfg.Outbox.MaxAttempts < 1 {
		return cfg, errors.New("max attempt counts must be >= 1")
	}
	if cfg.Inbound.PollInterval <= 0 || cfg.Outbox.PollInterval <= 0 {
		return cfg, errors.New("worker poll intervals must be positive durations")
	}
	if cfg.Inbound.RetryDelay <= 0 {
		return cfg, errors.New("INBOUND_RETRY_DELAY must be > 0")
	}
	if cfg.Outbox.Concurrency < 1 {
		return cfg, errors.New("OUTBOX_CONCURRENCY must be >= 1")
	}
	if cfg.Outbox.BaseBackoff <= 0 || cfg.Outbox.MaxBackoff < cfg.Outbox.BaseBackoff {
		return cfg, errors.New("OUTBOX_MAX_BACKOFF must be >= OUTBOX_BASE_BACKOFF > 0")
	}
	if cfg.Outbox.SendRPS <= 0 {
		return cfg, errors.New("SEND_RPS must be > 0")
	}
	if cfg.Outbox.SendBurst < 1 {
		return cfg, errors.New("SEND_BURST must be >= 1")
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
