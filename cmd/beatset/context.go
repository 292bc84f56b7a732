package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"beatset/internal/audio"
	"beatset/internal/config"
	"beatset/internal/featurecache"
	"beatset/internal/logging"
	"beatset/internal/progress"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// openCache wires the configured store, the ffmpeg decoder and the MFCC
// extractor. The returned close func releases the store.
func (c *commandContext) openCache(prog progress.Factory) (*featurecache.Cache, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	store, err := featurecache.Open(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	params := audio.ParamsFromConfig(cfg)
	extractor, err := audio.NewExtractor(params)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	cache, err := featurecache.New(featurecache.Options{
		Store:        store,
		Decoder:      audio.NewFFmpegDecoder(cfg.FFmpegBinary(), params.SampleRate),
		Extractor:    extractor,
		LockDir:      cfg.Cache.Dir,
		Workers:      cfg.WorkerCount(),
		VerifySource: cfg.Cache.VerifySource,
		Logger:       logger,
		Progress:     prog,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return cache, func() { _ = store.Close() }, nil
}

// progressFor draws bars when the command's stderr is a terminal and falls
// back to sampled log lines otherwise.
func progressFor(cmd *cobra.Command, logger *slog.Logger) progress.Factory {
	if f, ok := cmd.ErrOrStderr().(*os.File); ok {
		return progress.Auto(f, logger)
	}
	return progress.Logs(logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
