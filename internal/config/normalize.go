package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTransport(); err != nil {
		return err
	}
	c.normalizeBuffer()
	c.normalizeGPU()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = defaultRuntimeDir()
	}
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTransport() error {
	if value, ok := os.LookupEnv("TEXSHARE_SOCKET"); ok && strings.TrimSpace(value) != "" {
		c.Transport.SocketPath = value
	}
	c.Transport.SocketPath = strings.TrimSpace(c.Transport.SocketPath)
	if c.Transport.SocketPath == "" {
		c.Transport.SocketPath = defaultSocketName
	}
	if strings.HasPrefix(c.Transport.SocketPath, "~") {
		expanded, err := expandPath(c.Transport.SocketPath)
		if err != nil {
			return fmt.Errorf("transport.socket_path: %w", err)
		}
		c.Transport.SocketPath = expanded
	}
	if c.Transport.Backlog == 0 {
		c.Transport.Backlog = defaultBacklog
	}
	if c.Transport.ReceiveBuffer == 0 {
		c.Transport.ReceiveBuffer = defaultReceiveBuffer
	}
	return nil
}

func (c *Config) normalizeBuffer() {
	c.Buffer.Format = strings.TrimSpace(c.Buffer.Format)
	if c.Buffer.Format == "" {
		c.Buffer.Format = defaultFormat
	}
	c.Buffer.Modifier = strings.ToLower(strings.TrimSpace(c.Buffer.Modifier))
	if c.Buffer.Modifier == "" {
		c.Buffer.Modifier = defaultModifier
	}
}

func (c *Config) normalizeGPU() {
	if value, ok := os.LookupEnv("TEXSHARE_BACKEND"); ok && strings.TrimSpace(value) != "" {
		c.GPU.Backend = value
	}
	c.GPU.Backend = strings.ToLower(strings.TrimSpace(c.GPU.Backend))
	if c.GPU.Backend == "" {
		c.GPU.Backend = defaultBackend
	}
	c.GPU.RenderNode = strings.TrimSpace(c.GPU.RenderNode)
}

func (c *Config) normalizeJournal() error {
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = defaultJournalPath
	}
	var err error
	if c.Journal.Path, err = expandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
