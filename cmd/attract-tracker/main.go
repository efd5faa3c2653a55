package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/attract-vse/attract/internal/trackerapi"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

func main() {
	_ = godotenv.Load()
	logger := newLogger(envOrDefault("ATTRACT_LOG_LEVEL", "info"))
	log.Logger = logger

	addr := envOrDefault("ATTRACT_TRACKER_ADDR", ":5000")
	tracker, err := buildTrackerFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load tracker seed")
	}
	server := trackerapi.NewServerWithConfig(tracker, trackerapi.ServerConfig{
		MaxBodyBytes:    int64Env("ATTRACT_TRACKER_MAX_BODY_BYTES", 0),
		DefaultPageSize: intEnv("ATTRACT_TRACKER_PAGE_SIZE", 0),
		MaxPageSize:     intEnv("ATTRACT_TRACKER_MAX_PAGE_SIZE", 0),
		Logger:          &logger,
	})
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		server.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), durationEnv("ATTRACT_TRACKER_SHUTDOWN_TIMEOUT", 10*time.Second))
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	logger.Info().Str("addr", addr).Msg("attract tracker listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

// buildTrackerFromEnv seeds from ATTRACT_TRACKER_SEED, or with the
// development seed when it is unset.
func buildTrackerFromEnv() (*trackerapi.Tracker, error) {
	seed := trackerapi.DefaultSeed()
	if path := strings.TrimSpace(os.Getenv("ATTRACT_TRACKER_SEED")); path != "" {
		loaded, err := trackerapi.LoadSeedFile(path)
		if err != nil {
			return nil, err
		}
		seed = loaded
	}
	tracker := trackerapi.NewTracker()
	tracker.ApplySeed(seed)
	return tracker, nil
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(parsed).
		With().
		Timestamp().
		Logger()
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("name", name).Str("value", raw).Int("fallback", fallback).Msg("invalid integer, using fallback")
		return fallback
	}
	return value
}

func int64Env(name string, fallback int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Warn().Str("name", name).Str("value", raw).Int64("fallback", fallback).Msg("invalid integer, using fallback")
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("name", name).Str("value", raw).Dur("fallback", fallback).Msg("invalid duration, using fallback")
		return fallback
	}
	return value
}
