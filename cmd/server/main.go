package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tandemhq/tandem/internal/api"
	"github.com/tandemhq/tandem/internal/auth"
	"github.com/tandemhq/tandem/internal/automation"
	"github.com/tandemhq/tandem/internal/config"
	"github.com/tandemhq/tandem/internal/handlers"
	"github.com/tandemhq/tandem/internal/mailer"
	"github.com/tandemhq/tandem/internal/models"
	"github.com/tandemhq/tandem/internal/notify"
	"github.com/tandemhq/tandem/internal/realtime"
	"github.com/tandemhq/tandem/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Run migrations (Postgres only; SQLite bootstraps its own schema)
	if strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")
	}

	// Initialize data store
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("store connection failed")
	}
	defer db.Close()
	logger.Info().Msg("connected to data store")

	// Initialize Redis (event history cache + rate limiting)
	redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer redisStore.Close()
	logger.Info().Msg("connected to Redis")

	// Realtime plumbing
	hub := realtime.NewHub(logger)
	presence := realtime.NewPresenceRegistry()
	events := realtime.NewBroadcaster(hub, redisStore, logger)
	membership := realtime.NewMembership(hub, presence, events, logger)
	verifier := auth.NewTokenVerifier(cfg.AccessTokenSecret)

	// Notification dispatch
	dispatcher := notify.NewDispatcher(db, db, events, logger)

	// Automation rule evaluation
	evaluator := automation.NewEvaluator(db, logger)
	evaluator.Register(models.ActionAssignUser, automation.NewAssignUserHandler(db, events))
	evaluator.Register(models.ActionSendEmail, automation.NewSendEmailHandler(newMailer(cfg, logger), db, cfg.EmailFrom))
	evaluator.Register(models.ActionWebhook, automation.NewWebhookHandler())

	socket := realtime.NewSocketServer(hub, verifier, membership, events, dispatcher, logger)

	h := handlers.NewHandler(db, redisStore, presence, events, evaluator, dispatcher, logger)
	router := api.NewRouter(logger, cfg, h, socket, verifier, redisStore)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting tandem server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// newMailer selects the email backend for the SEND_EMAIL automation action.
func newMailer(cfg *config.Config, logger zerolog.Logger) mailer.Mailer {
	if cfg.EmailProvider == "sendgrid" {
		if cfg.SendGridAPIKey == "" {
			logger.Warn().Msg("EMAIL_PROVIDER=sendgrid but SENDGRID_API_KEY is empty")
		}
		return mailer.NewSendGridMailer(cfg.SendGridAPIKey, "Tandem")
	}
	return mailer.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword)
}
