package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Bentheburrito/planetside-api/ess"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		// Basic logger for startup errors
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("config", *configPath).
		Str("environment", cfg.Environment).
		Strs("events", cfg.Events).
		Msg("starting esstail")

	client, err := ess.New(ess.Config{
		ServiceID:   cfg.ServiceID,
		Environment: cfg.Environment,
		DedupSize:   cfg.DedupSize,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create stream client")
	}

	_, err = client.Register(ess.HandlerFunc(func(event ess.Event) {
		logger.Info().
			Str("event", event.Name).
			Interface("payload", event.Payload).
			Msg("event")
	}),
		ess.WithName("esstail"),
		ess.WithEvents(cfg.Events...),
		ess.WithWorlds(cfg.Worlds...),
		ess.WithCharacters(cfg.Characters...),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register consumer")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = client.Connect(ctx)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to event stream")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	client.Close()
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}
