// Command server runs the venue relay: HTTP intake (webhook + venue API),
// the inbound queue worker, the outbox delivery worker, and the optional
// long-poll fetcher, all over one SQLite database.
//
// Startup order:
//  1. Load .env and configuration
//  2. Configure logging (level, pretty console in dev)
//  3. Initialize OpenTelemetry (optional)
//  4. Open the database and run migrations
//  5. Start background workers
//  6. Serve HTTP until SIGINT/SIGTERM, then drain gracefully
//
// @title        Venue Relay API
// @version      1.0
// @description  Durable chat relay for venue ordering: webhook intake, outbox delivery, staff notifications.
// @BasePath     /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/venuedesk/go-venue-relay/internal/config"
	httpapi "github.com/venuedesk/go-venue-relay/internal/http"
	"github.com/venuedesk/go-venue-relay/internal/inbound"
	"github.com/venuedesk/go-venue-relay/internal/observability"
	"github.com/venuedesk/go-venue-relay/internal/outbox"
	"github.com/venuedesk/go-venue-relay/internal/provider"
	"github.com/venuedesk/go-venue-relay/internal/repo"
	"github.com/venuedesk/go-venue-relay/internal/router"
	"github.com/venuedesk/go-venue-relay/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op when disabled).
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Warn().Err(err).Msg("gorm tracing plugin")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	client := provider.NewHTTPClient(cfg.Bot.APIBase, cfg.Bot.Token, cfg.Bot.CallTimeout)

	// Background workers. Each Run blocks until ctx is done.
	inboundWorker := &inbound.Worker{
		DB:           db,
		Router:       router.NewDialogRouter(db),
		BatchSize:    cfg.Inbound.BatchSize,
		MaxAttempts:  cfg.Inbound.MaxAttempts,
		RetryDelay:   cfg.Inbound.RetryDelay,
		PollInterval: cfg.Inbound.PollInterval,
	}
	outboxWorker := &outbox.Worker{
		DB:           db,
		Client:       client,
		Limiter:      rate.NewLimiter(rate.Limit(cfg.Outbox.SendRPS), cfg.Outbox.SendBurst),
		BatchSize:    cfg.Outbox.BatchSize,
		Concurrency:  cfg.Outbox.Concurrency,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		PollInterval: cfg.Outbox.PollInterval,
		Backoff: outbox.Backoff{
			Base: cfg.Outbox.BaseBackoff,
			Max:  cfg.Outbox.MaxBackoff,
		},
	}
	go func() { _ = inboundWorker.Run(ctx) }()
	go func() { _ = outboxWorker.Run(ctx) }()

	if cfg.Bot.Transport == config.TransportPoll {
		poller := &inbound.Poller{
			DB:          db,
			Fetcher:     client,
			PollTimeout: cfg.Bot.PollTimeout,
		}
		go func() { _ = poller.Run(ctx) }()
		log.Info().Msg("long-poll transport enabled")
	}

	go pruneClaims(ctx, db, cfg.ClaimPruneAge)

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("bye")
}

// pruneClaims drops idempotency claims older than maxAge once an hour. The
// claim table guards short replay windows; rows past the window are noise.
func pruneClaims(ctx context.Context, db *gorm.DB, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.PruneClaims(ctx, db, time.Now().Add(-maxAge))
			if err != nil {
				log.Warn().Err(err).Msg("claim prune failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("pruned", n).Msg("idempotency claims pruned")
			}
		}
	}
}
