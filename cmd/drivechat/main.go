package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/DriveChat/internal/adapters/directory"
	"github.com/dkeye/DriveChat/internal/adapters/ws"
	"github.com/dkeye/DriveChat/internal/clock"
	"github.com/dkeye/DriveChat/internal/config"
	"github.com/dkeye/DriveChat/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("drivechat", pflag.ContinueOnError)
	flags.String("server-url", "http://127.0.0.1:8000", "relay base URL")
	flags.String("log-file", "drivechat.log", "log file; the terminal belongs to the UI")
	flags.String("log-level", "info", "log level")
	flags.Duration("rest-stop-after", 15*time.Minute, "time in a room before the move to the rest stop; 0 disables it")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// Config logs through the global logger, so keep it quiet until the
	// log file is known.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.Disabled)
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	dir, err := directory.New(cfg.ServerURL, &http.Client{Timeout: directory.DefaultTimeout})
	if err != nil {
		return err
	}
	dialer, err := ws.NewDialer(cfg.ServerURL, ws.Options{
		PingPeriod: cfg.PingPeriod,
		ReadLimit:  cfg.ReadLimit,
		SendQueue:  cfg.SendQueue,
	})
	if err != nil {
		return err
	}

	var program *tea.Program
	model := tui.New(tui.Options{
		Directory:     dir,
		Dialer:        dialer,
		Clock:         clock.Real(),
		RestStopAfter: cfg.RestStopAfter,
		Send:          func(msg tea.Msg) { program.Send(msg) },
	})
	program = tea.NewProgram(model, tea.WithAltScreen())

	log.Info().Str("module", "main").Str("server", cfg.ServerURL).Msg("DriveChat client started")
	_, err = program.Run()
	return err
}
