// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/touchline/internal/api/auth"
	"github.com/codr1/touchline/internal/api/games"
	"github.com/codr1/touchline/internal/api/teams"
	"github.com/codr1/touchline/internal/config"
	"github.com/codr1/touchline/internal/db"
	"github.com/codr1/touchline/internal/drafts"
	"github.com/codr1/touchline/internal/email"
	"github.com/codr1/touchline/internal/ratelimit"
	"github.com/codr1/touchline/internal/scheduler"
	"github.com/codr1/touchline/internal/squad"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config/app.yaml"
}

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	issuer, err := auth.NewTokenIssuer(cfg.App.SecretKey, cfg.TokenTTL())
	if err != nil {
		database.Close()
		return fmt.Errorf("token issuer: %w", err)
	}

	limiter := ratelimit.New(ratelimit.DefaultConfig())
	defer limiter.Close()

	autosaver := drafts.NewAutosaver(database.Queries, cfg.AutosaveDebounce())

	auth.InitHandlers(database.Queries, issuer, limiter, cfg.App.TrustProxy)
	teams.InitHandlers(database.Queries)
	games.InitHandlers(database, autosaver, games.Options{
		Rules: squad.Rules{
			StartingLineupSize: cfg.Squad.StartingLineupSize,
			MinBenchSize:       cfg.Squad.MinBenchSize,
		},
		DefaultFormation: cfg.Squad.DefaultFormation,
	})

	sched, err := newScheduler(cfg, database)
	if err != nil {
		_ = autosaver.Close(context.Background())
		database.Close()
		return err
	}
	sched.Start()

	server := newServer(cfg, issuer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("environment", cfg.App.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Shutdown order: stop taking requests, flush drafts, stop jobs, close db.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := autosaver.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("flush drafts: %w", err))
		}
		if err := sched.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
		if err := database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newScheduler(cfg *config.Config, database *db.DB) (*scheduler.Service, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	var sender email.Sender
	if cfg.Email.Enabled() {
		client, err := email.NewSESClient(cfg.Email)
		if err != nil {
			return nil, fmt.Errorf("init email: %w", err)
		}
		sender = client
	} else {
		log.Warn().Msg("Email not configured; report reminders disabled")
	}

	if err := scheduler.RegisterReportReminders(sched, cfg.Reports.ReminderCron, &scheduler.ReportReminder{
		Queries: database.Queries,
		Sender:  sender,
		After:   cfg.ReminderAfter(),
		BaseURL: cfg.App.BaseURL,
	}); err != nil {
		return nil, err
	}
	if err := scheduler.RegisterDraftCleanup(sched, cfg.Drafts.CleanupCron, &scheduler.DraftCleanup{
		Queries:   database.Queries,
		Retention: cfg.DraftRetention(),
	}); err != nil {
		return nil, err
	}
	return sched, nil
}
