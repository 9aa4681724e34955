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
	"github.com/spf13/pflag"

	router "github.com/dkeye/DriveChat/internal/adapters/http"
	"github.com/dkeye/DriveChat/internal/config"
	"github.com/dkeye/DriveChat/internal/relay"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logger first so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags := pflag.NewFlagSet("drivechat-relay", pflag.ContinueOnError)
	flags.Int("port", 8000, "listen port")
	flags.String("mode", "release", "gin mode: release or debug")
	flags.String("log-level", "info", "log level")
	flags.Int("rest-stop-capacity", 50, "capacity of the rest stop room")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("bad flags")
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	hub := relay.NewHub(relay.Options{
		RestStopCapacity: cfg.RestStopCapacity,
		DriverSeatHold:   cfg.DriverSeatHold,
		EmptyRoomTTL:     cfg.EmptyRoomTTL,
		ChatRateLimit:    cfg.ChatRateLimit,
		ChatRateInterval: cfg.ChatRateInterval,
	})

	r := router.SetupRouter(cfg, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("DriveChat relay started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	log.Info().Msg("Server exited gracefully")
}
