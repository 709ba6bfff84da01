package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelpack/internal/config"
	"reelpack/internal/logging"
	"reelpack/internal/reveal"
	"reelpack/internal/workflow"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	revealFlag   *bool

	// managerOptions are appended when a manager is built; tests use them to
	// swap the codec engine and metadata reader.
	managerOptions []workflow.Option

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, revealFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		revealFlag:   revealFlag,
	}
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
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
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
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withManager builds a workflow manager for the duration of fn and shuts it
// down afterwards.
func (c *commandContext) withManager(cmd *cobra.Command, fn func(context.Context, *workflow.Manager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}

	opts := []workflow.Option{}
	if c.revealFlag != nil && *c.revealFlag {
		opts = append(opts, workflow.WithRevealer(reveal.NewDesktop(logger)))
	}
	opts = append(opts, c.managerOptions...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	mgr, err := workflow.NewManager(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	runErr := fn(ctx, mgr)
	if err := mgr.Shutdown(); err != nil {
		logger.Warn("shutdown incomplete", logging.Error(err))
	}
	return runErr
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

func requireArgs(n int, what string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}
