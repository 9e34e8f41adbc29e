// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/smhanov/msgrelay"
)

// Config is shared by both roles; each reads only what it needs.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:3000"`
	PagesDir string `env:"PAGES_DIR,default=."`

	RelayAddr string `env:"RELAY_ADDR,default=:6000"`
	RelayURL  string `env:"RELAY_URL,default=ws://localhost:6000/"`

	StoreDriver     string `env:"STORE_DRIVER,default=mongodb"`
	StoreURI        string `env:"STORE_URI,default=mongodb://mongodb:27017/"`
	StoreDatabase   string `env:"STORE_DATABASE,default=messaging"`
	StoreCollection string `env:"STORE_COLLECTION,default=users_messages"`

	DeliveryTimeout    time.Duration `env:"DELIVERY_TIMEOUT,default=5s"`
	InsertTimeout      time.Duration `env:"INSERT_TIMEOUT,default=5s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT,default=0s"`
	MaxMessageSize     int           `env:"MAX_MESSAGE_SIZE,default=65536"`
	MaxFormSize        int           `env:"MAX_FORM_SIZE,default=1048576"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	RestartDelay       time.Duration `env:"RESTART_DELAY,default=1s"`

	LogLevel string `env:"LOG_LEVEL,default=INFO"`
}

// Load reads an optional .env file from the working directory, then the
// environment. Variables already set win over the file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// Store returns the store selection of the Collector.
func (c Config) Store() msgrelay.StoreConfig {
	return msgrelay.StoreConfig{
		Driver:     c.StoreDriver,
		URI:        c.StoreURI,
		Database:   c.StoreDatabase,
		Collection: c.StoreCollection,
	}
}

// Relay returns the client the Front Door delivers through. It refuses
// payloads over the Collector's MAX_MESSAGE_SIZE.
func (c Config) Relay() *msgrelay.Relay {
	relay := msgrelay.NewRelay(c.RelayURL, c.DeliveryTimeout)
	relay.MaxMessageSize = int64(c.MaxMessageSize)
	return relay
}

// FrontDoor returns the Front Door options, logging to log.
func (c Config) FrontDoor(log *slog.Logger) msgrelay.FrontDoorOptions {
	return msgrelay.FrontDoorOptions{
		Logger:      log,
		MaxFormSize: int64(c.MaxFormSize),
	}
}

// Collector returns the Collector options, logging to log.
func (c Config) Collector(log *slog.Logger) msgrelay.CollectorOptions {
	return msgrelay.CollectorOptions{
		Logger:         log,
		InsertTimeout:  c.InsertTimeout,
		IdleTimeout:    c.SessionIdleTimeout,
		MaxMessageSize: int64(c.MaxMessageSize),
	}
}

// ParseLevel accepts DEBUG, INFO, WARN or ERROR in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
