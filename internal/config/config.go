// Package config reads the server's settings from the environment.
//
// An optional .env file in the working directory is loaded first with
// godotenv. Variables already present in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// minSecretLength matches auth.NewTokenService.
const minSecretLength = 16

type Config struct {
	Port int

	StoreDriver   string
	DBPath        string // sqlite
	DatabaseURL   string // postgres
	MongoURI      string // mongo
	MongoDatabase string // mongo

	// BaseURL is the public origin used in unsubscribe links.
	BaseURL string
	// UnsubscribeConfirm makes GET /unsubscribe read-only.
	UnsubscribeConfirm bool
	// DeliveryJWTSecret enables the delivery API when set.
	DeliveryJWTSecret string

	LogLevel  slog.Level
	LogFormat string // "text" or "json"
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	// A missing .env file is the normal case in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}
	return LoadFrom(os.Getenv)
}

// LoadFrom builds a Config from getenv, applying defaults and validating
// the result. Tests pass a map lookup instead of os.Getenv.
func LoadFrom(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		StoreDriver:       strings.ToLower(get("STORE_DRIVER", DriverSQLite)),
		DBPath:            get("DB_PATH", "data/subscribers.db"),
		DatabaseURL:       get("DATABASE_URL", ""),
		MongoURI:          get("MONGO_URI", ""),
		MongoDatabase:     get("MONGO_DATABASE", "menu_bot"),
		DeliveryJWTSecret: get("DELIVERY_JWT_SECRET", ""),
		LogFormat:         strings.ToLower(get("LOG_FORMAT", "text")),
	}

	port, err := strconv.Atoi(get("PORT", "8080"))
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("config: PORT must be a number between 1 and 65535, got %q", getenv("PORT"))
	}
	cfg.Port = port
	cfg.BaseURL = strings.TrimRight(get("BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")

	confirm, err := strconv.ParseBool(get("UNSUBSCRIBE_CONFIRM", "true"))
	if err != nil {
		return nil, fmt.Errorf("config: UNSUBSCRIBE_CONFIRM must be a boolean, got %q", getenv("UNSUBSCRIBE_CONFIRM"))
	}
	cfg.UnsubscribeConfirm = confirm

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the chosen store has what it needs to connect.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("config: DB_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI is required for the mongo store")
		}
		if c.MongoDatabase == "" {
			return errors.New("config: MONGO_DATABASE must not be empty")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q (want sqlite, postgres or mongo)", c.StoreDriver)
	}

	if c.DeliveryJWTSecret != "" && len(c.DeliveryJWTSecret) < minSecretLength {
		return fmt.Errorf("config: DELIVERY_JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// DeliveryEnabled reports whether the delivery API should be mounted.
func (c *Config) DeliveryEnabled() bool {
	return c.DeliveryJWTSecret != ""
}

// NewLogger builds the process logger described by LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
