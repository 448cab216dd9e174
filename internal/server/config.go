package server

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring Server instance
type config struct {
	httpServer      *http.Server
	handlers        map[string]http.Handler
	afterShutdown   []func()
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
}

// EnvConfig defines fields used for parsing from environment variables
type EnvConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            uint16        `env:"PORT" envDefault:"5000"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Level parses LogLevel, rejecting unknown names
func (cfg EnvConfig) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(cfg.LogLevel)
}

// WithEnvConfig enables processing exported EnvConfig struct to acts as a source of config parameters for http.Server
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.httpServer.Addr = cfg.Host + ":" + strconv.FormatUint(uint64(cfg.Port), 10)
		if cfg.RequestTimeout > 0 {
			c.requestTimeout = cfg.RequestTimeout
		}
		if cfg.ShutdownTimeout > 0 {
			c.shutdownTimeout = cfg.ShutdownTimeout
		}
	})
}

// ReadTimeout sets read timeout for http.Server
func ReadTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.httpServer.ReadTimeout = d
	})
}

// RequestTimeout bounds the time a single handler may take, zero disables the limit
func RequestTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.requestTimeout = d
	})
}

// RegisterAfterShutdown registers a function to call after http.Server shutdown
// f will not be called in separated goroutine
func RegisterAfterShutdown(f func()) Option {
	return optionFunc(func(c *config) {
		c.afterShutdown = append(c.afterShutdown, f)
	})
}

// registerHandlers iterates over a handlers map and registers each handler for newly initialized http.ServeMux
// that http.ServeMux is used as a http.Handler for http.Server in config struct
func registerHandlers() Option {
	return optionFunc(func(c *config) {
		mux := http.NewServeMux()
		for pattern, h := range c.handlers {
			mux.Handle(pattern, h)
		}
		c.httpServer.Handler = mux
	})
}

// applyTimeout wraps each handler in handlers map with jsonTimeout when request timeout is set
func applyTimeout() Option {
	return optionFunc(func(c *config) {
		if c.requestTimeout <= 0 {
			return
		}
		for pattern, h := range c.handlers {
			c.handlers[pattern] = jsonTimeout(h, c.requestTimeout)
		}
	})
}

// applyRecover wraps each http.Handler in handlers map with recoverer middleware
func applyRecover(logger *zap.Logger) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = recoverer(h, logger)
		}
	})
}

// applyInstrument wraps each http.Handler in handlers map with instrument middleware labelled by its pattern
func applyInstrument() Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = instrument(h, pattern)
		}
	})
}

// applyLog wraps each http.Handler in handlers map with log middleware
func applyLog(logger *zap.Logger) Option {
	return optionFunc(func(c *config) {
		for pattern, h := range c.handlers {
			c.handlers[pattern] = log(h, logger)
		}
	})
}
