// internal/config/config.go

// Package config loads server and historian settings.
// Order of precedence: built-in defaults, then a YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no explicit config file is given and it exists.
const DefaultPath = "duel.yaml"

// Config holds every tunable of the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Historian HistorianConfig `yaml:"historian"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig configures the websocket front end.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	OutBuffer      int      `yaml:"out_buffer"`   // per-connection outbound messages
	EventBuffer    int      `yaml:"event_buffer"` // dispatcher inbound events
	RecordHistory  bool     `yaml:"record_history"`
}

// RedisConfig points at the room history queue.
type RedisConfig struct {
	Addr  string `yaml:"addr"`
	DB    int    `yaml:"db"`
	Queue string `yaml:"queue"`
}

// DatabaseConfig points at the Postgres history store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// HistorianConfig controls batching of room history into Postgres.
type HistorianConfig struct {
	BatchSize     int `yaml:"batch_size"`
	FlushMs       int `yaml:"flush_ms"`
	InactivitySec int `yaml:"inactivity_sec"`
}

// FlushInterval returns FlushMs as a duration.
func (h HistorianConfig) FlushInterval() time.Duration {
	return time.Duration(h.FlushMs) * time.Millisecond
}

// Inactivity returns InactivitySec as a duration.
func (h HistorianConfig) Inactivity() time.Duration {
	return time.Duration(h.InactivitySec) * time.Second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			OutBuffer:      32,
			EventBuffer:    256,
		},
		Redis: RedisConfig{
			Addr:  "localhost:6379",
			Queue: "duel_room_events",
		},
		Historian: HistorianConfig{
			BatchSize:     20,
			FlushMs:       500,
			InactivitySec: 600,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration. An empty path falls back to DefaultPath if present.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	c.Server.Addr = getEnv("DUEL_ADDR", c.Server.Addr)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	c.Server.OutBuffer = getEnvInt("DUEL_OUT_BUFFER", c.Server.OutBuffer)
	c.Server.EventBuffer = getEnvInt("DUEL_EVENT_BUFFER", c.Server.EventBuffer)
	c.Server.RecordHistory = getEnvBool("DUEL_RECORD_HISTORY", c.Server.RecordHistory)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.Queue = getEnv("HISTORIAN_QUEUE_NAME", c.Redis.Queue)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)

	c.Historian.BatchSize = getEnvInt("HISTORIAN_BATCH_SIZE", c.Historian.BatchSize)
	c.Historian.FlushMs = getEnvInt("HISTORIAN_FLUSH_MS", c.Historian.FlushMs)
	c.Historian.InactivitySec = getEnvInt("ROOM_INACTIVITY_TIMEOUT_SEC", c.Historian.InactivitySec)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("server.allowed_origins must list at least one pattern"))
	}
	if c.Server.OutBuffer < 1 {
		errs = append(errs, fmt.Errorf("server.out_buffer must be positive, got %d", c.Server.OutBuffer))
	}
	if c.Server.EventBuffer < 1 {
		errs = append(errs, fmt.Errorf("server.event_buffer must be positive, got %d", c.Server.EventBuffer))
	}
	if c.Historian.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("historian.batch_size must be positive, got %d", c.Historian.BatchSize))
	}
	if c.Historian.FlushMs < 1 {
		errs = append(errs, fmt.Errorf("historian.flush_ms must be positive, got %d", c.Historian.FlushMs))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, defaulting to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
