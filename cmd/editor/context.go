package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/heimdex/heimdex-editor/internal/config"
	"github.com/heimdex/heimdex-editor/internal/db"
	"github.com/heimdex/heimdex-editor/internal/engine"
	"github.com/heimdex/heimdex-editor/internal/history"
	"github.com/heimdex/heimdex-editor/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.EnvConfig
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.EnvConfig, error) {
	c.configOnce.Do(func() {
		path := os.Getenv(config.EnvConfigFile)
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
			c.configErr = fmt.Errorf("failed to create data dir: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewLogger(config.DefaultLogLevel, config.DefaultLogFormat)
			return
		}
		c.logger = logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
	})
	return c.logger
}

func (c *commandContext) newEngine() *engine.FFmpeg {
	cfg := c.config
	return engine.NewFFmpeg(engine.Config{
		FFmpegPath:   cfg.FFmpegPath(),
		FFprobePath:  cfg.FFprobePath(),
		VideoCodec:   cfg.VideoCodec(),
		AudioCodec:   cfg.AudioCodec(),
		TrimTimeout:  cfg.TrimTimeout(),
		MergeTimeout: cfg.MergeTimeout(),
		Logger:       c.loggerValue(),
	})
}

// openHistory opens the job database. Callers close the returned DB.
func (c *commandContext) openHistory() (*db.DB, *history.SQLiteRepository, error) {
	database, err := db.New(c.config.DBPath(), c.loggerValue())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return database, history.NewRepository(database.Conn()), nil
}
