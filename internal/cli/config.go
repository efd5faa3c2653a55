package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServer   = "http://localhost:5000"
	DefaultStoreDSN = "strips.json"
)

// Config is the resolved client configuration. Values are layered as
// defaults, then the YAML file, then ATTRACT_* environment, then flags.
type Config struct {
	Server          string        `yaml:"server" json:"server"`
	Token           string        `yaml:"token" json:"-"`
	Store           string        `yaml:"store" json:"store"`
	ShotType        string        `yaml:"shot_type" json:"shot_type"`
	PageSize        int           `yaml:"page_size" json:"page_size"`
	FollowPages     bool          `yaml:"follow_pages" json:"follow_pages"`
	PrefetchWorkers int           `yaml:"prefetch_workers" json:"prefetch_workers"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	Watch           WatchConfig   `yaml:"watch" json:"watch"`
}

type WatchConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval"`
	Jitter   float64       `yaml:"jitter" json:"jitter"`
	Workers  int           `yaml:"workers" json:"workers"`
	Events   bool          `yaml:"events" json:"events"`
}

func DefaultConfig() Config {
	return Config{
		Server:          DefaultServer,
		Store:           DefaultStoreDSN,
		ShotType:        "shot",
		PageSize:        100,
		PrefetchWorkers: 4,
		Timeout:         15 * time.Second,
		MaxRetries:      2,
		LogLevel:        "info",
		Watch: WatchConfig{
			Interval: 30 * time.Second,
			Jitter:   0.2,
			Workers:  2,
			Events:   true,
		},
	}
}

// LoadConfig resolves everything except flags. A missing .env is ignored;
// a missing config file is an error only when path was given explicitly.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := DefaultConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("ATTRACT_CONFIG"))
	}
	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server = envOrDefault("ATTRACT_SERVER", cfg.Server)
	cfg.Token = envOrDefault("ATTRACT_TOKEN", cfg.Token)
	cfg.Store = envOrDefault("ATTRACT_STORE", cfg.Store)
	cfg.ShotType = envOrDefault("ATTRACT_SHOT_TYPE", cfg.ShotType)
	cfg.PageSize = intEnv("ATTRACT_PAGE_SIZE", cfg.PageSize)
	cfg.FollowPages = boolEnv("ATTRACT_FOLLOW_PAGES", cfg.FollowPages)
	cfg.PrefetchWorkers = intEnv("ATTRACT_PREFETCH_WORKERS", cfg.PrefetchWorkers)
	cfg.Timeout = durationEnv("ATTRACT_TIMEOUT", cfg.Timeout)
	cfg.MaxRetries = intEnv("ATTRACT_MAX_RETRIES", cfg.MaxRetries)
	cfg.LogLevel = envOrDefault("ATTRACT_LOG_LEVEL", cfg.LogLevel)
	cfg.Watch.Interval = durationEnv("ATTRACT_WATCH_INTERVAL", cfg.Watch.Interval)
	cfg.Watch.Jitter = floatEnv("ATTRACT_WATCH_JITTER", cfg.Watch.Jitter)
	cfg.Watch.Workers = intEnv("ATTRACT_WATCH_WORKERS", cfg.Watch.Workers)
	cfg.Watch.Events = boolEnv("ATTRACT_WATCH_EVENTS", cfg.Watch.Events)
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Server) == "" {
		return errors.New("server is required (--server or ATTRACT_SERVER)")
	}
	if strings.TrimSpace(c.Store) == "" {
		return errors.New("store is required (--store or ATTRACT_STORE)")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intEnv(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
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

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
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

func floatEnv(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Str("name", name).Str("value", raw).Float64("fallback", fallback).Msg("invalid float, using fallback")
		return fallback
	}
	return value
}

func boolEnv(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("name", name).Str("value", raw).Bool("fallback", fallback).Msg("invalid bool, using fallback")
		return fallback
	}
	return value
}
