package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/app"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/config"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/logging"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/metrics"
	"github.com/therealutkarshpriyadarshi/liturgia/internal/style"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *logging.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		// .env only seeds the environment; a missing file is fine
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.configErr = err
			return
		}

		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		if path == "" {
			path = "config.yaml"
		}

		c.config, c.configErr = config.LoadOrDefault(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*logging.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}

		level := cfg.Logging.Level
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			level = *c.logLevelFlag
		}

		c.logger, c.loggerErr = logging.NewLogger(logging.Config{
			Level:      level,
			Format:     cfg.Logging.Format,
			Output:     cfg.Logging.Output,
			TimeFormat: cfg.Logging.TimeFormat,
		})
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) styleStore() (*style.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return style.NewStore(cfg.Style.Dir, logger), nil
}

// buildApp connects the configured backends and starts the metrics
// endpoint when enabled. The returned func releases everything.
func (c *commandContext) buildApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, nil, err
	}

	var server *metrics.Server
	if cfg.Metrics.Enabled {
		server = metrics.NewServer(cfg.Metrics.Port)
		go func() {
			if err := server.Start(); err != nil {
				logger.ErrorWithErr("Metrics server stopped", err)
			}
		}()
	}

	cleanup := func() {
		if server != nil {
			server.Shutdown(context.Background())
		}
		if err := a.Close(); err != nil {
			logger.ErrorWithErr("Failed to close backends", err)
		}
	}
	return a, cleanup, nil
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
