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
	"github.com/mcdev12/pollroom/go/internal/catalog"
	"github.com/mcdev12/pollroom/go/internal/gateway"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg.LogLevel)

	questions, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load question catalog")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("storage", cfg.Storage).Msg("failed to open vote store")
	}
	defer closeStore()

	gatewayConfig := gateway.Config{
		ConnectionConfig: gateway.DefaultConnectionConfig(),
		Room:             cfg.roomConfig(),
	}
	gatewayConfig.ConnectionConfig.CheckOrigin = originChecker(cfg.AllowedOrigins)

	gatewayService := gateway.NewService(gatewayConfig, questions, store)

	serviceDone := make(chan error, 1)
	go func() {
		serviceDone <- gatewayService.Start(ctx)
	}()
	<-gatewayService.Ready()

	server := setupServer(cfg, gatewayService)

	log.Info().
		Str("storage", cfg.Storage).
		Int("questions", len(questions)).
		Str("port", cfg.Port).
		Msg("starting poll room")

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// stops the room and flushes the last pending snapshot
	cancel()
	select {
	case err := <-serviceDone:
		if err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	case <-shutdownCtx.Done():
		log.Warn().Msg("timed out waiting for room to stop")
	}

	log.Info().Msg("poll room shutdown complete")
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func loadCatalog(path string) (catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
