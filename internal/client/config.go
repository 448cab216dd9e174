package client

import (
	"time"

	"github.com/caarlos0/env/v6"
)

// Config defines client settings parsed from environment variables (optionally loaded from .env)
type Config struct {
	ServerURL       string        `env:"CHAT_SERVER_URL" envDefault:"http://127.0.0.1:5000"`
	PollInterval    time.Duration `env:"CHAT_POLL_INTERVAL" envDefault:"1500ms"`
	RequestTimeout  time.Duration `env:"CHAT_REQUEST_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"CHAT_SHUTDOWN_TIMEOUT" envDefault:"2s"`
	Colors          bool          `env:"CHAT_COLORS" envDefault:"true"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"warn"`
}

// DefaultConfig returns the envDefault values, ignoring the process environment
func DefaultConfig() Config {
	var cfg Config
	if err := env.Parse(&cfg, env.Options{Environment: map[string]string{}}); err != nil {
		panic(err)
	}
	return cfg
}
