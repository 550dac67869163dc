package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"texshare/internal/config"
	"texshare/internal/logging"
	"texshare/internal/xfer"
)

type commandContext struct {
	socketFlag  *string
	configFlag  *string
	backendFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(socketFlag, configFlag, backendFlag *string) *commandContext {
	return &commandContext{
		socketFlag:  socketFlag,
		configFlag:  configFlag,
		backendFlag: backendFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = xfer.Wrap(xfer.ErrConfiguration, "cli", "load config", "", err)
			return
		}
		if socket := flagValue(c.socketFlag); socket != "" {
			expanded, err := config.ExpandPath(socket)
			if err != nil {
				c.configErr = xfer.Wrap(xfer.ErrConfiguration, "cli", "socket flag", "", err)
				return
			}
			cfg.Transport.SocketPath = expanded
		}
		if backend := flagValue(c.backendFlag); backend != "" {
			cfg.GPU.Backend = strings.ToLower(backend)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = xfer.Wrap(xfer.ErrConfiguration, "cli", "ensure directories", "", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger from the loaded configuration.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = xfer.Wrap(xfer.ErrConfiguration, "cli", "init logger", "", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func flagValue(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
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

func describePeer(pid int32, uid uint32) string {
	if pid <= 0 {
		return "-"
	}
	return fmt.Sprintf("pid %d uid %d", pid, uid)
}
