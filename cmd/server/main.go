package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Relay/internal/adapters/http"
	"github.com/dkeye/Relay/internal/adapters/callback"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if !cfg.AuthEnabled() {
		log.Warn().Msg("no API secret set, control plane authentication disabled")
	}
	if cfg.AuthEndpoint == "" && !cfg.AllowUnauth {
		log.Warn().Msg("no auth endpoint and unauthenticated connections disallowed, every connection will be rejected")
	}

	o := &orch.Orchestrator{
		Registry:   app.NewRegistry(),
		Policy:     app.NewAdmissionPolicy(cfg),
		AckTimeout: cfg.AckTimeout(),
	}
	if cfg.AckEnabled() {
		o.Notifier = callback.NewNotifier(cfg.AckEndpoint, cfg.APISecret, cfg.CallbackTimeout)
		log.Info().Str("endpoint", cfg.AckEndpoint).Dur("ack_timeout", cfg.AckTimeout()).Msg("acknowledgement collection enabled")
	}

	r := router.SetupRouter(ctx, cfg, o)
	addr := cfg.Addr()

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Relay server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	o.CloseAll()
	if !o.Drain(shutdownCtx) {
		log.Warn().Msg("pending acknowledgement callbacks dropped")
	}
	log.Info().Msg("Server exited gracefully")
}
