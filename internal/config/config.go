package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env             string        `env:"ENV" envDefault:"local"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	FlushInterval   time.Duration `env:"FLUSH_INTERVAL" envDefault:"1s"`
	DefaultServer   string        `env:"DEFAULT_SERVER" envDefault:"https://profitrobots.com"`
	StrategyName    string        `env:"STRATEGY_NAME"`
	Platform        string        `env:"PLATFORM" envDefault:"MetaTrader"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	Telegram        Telegram      `envPrefix:"TELEGRAM_"`
}

// Telegram configures the optional operator mirror.
type Telegram struct {
	Token  string `env:"TOKEN"`
	ChatID int64  `env:"CHAT_ID"`
}

func (t Telegram) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("read env config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.FlushInterval < time.Second || c.FlushInterval%time.Second != 0 {
		return fmt.Errorf("FLUSH_INTERVAL must be whole seconds, at least 1s, got %s", c.FlushInterval)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.DefaultServer == "" {
		return errors.New("DEFAULT_SERVER must not be empty")
	}
	return nil
}
