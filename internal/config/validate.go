package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateBuffer(); err != nil {
		return err
	}
	if err := c.validateTransfer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTransport() error {
	if c.Transport.Backlog < 0 {
		return errors.New("transport.backlog must be zero or positive")
	}
	// One receive must hold a whole announce record.
	if c.Transport.ReceiveBuffer < minReceiveBuffer {
		return fmt.Errorf("transport.receive_buffer must be at least %d bytes", minReceiveBuffer)
	}
	if c.Transport.ConnectTimeout < 0 {
		return errors.New("transport.connect_timeout must be zero or positive")
	}
	if c.Transport.AcceptTimeout < 0 {
		return errors.New("transport.accept_timeout must be zero or positive")
	}
	if c.Transport.AckTimeout < 0 {
		return errors.New("transport.ack_timeout must be zero or positive")
	}
	// sun_path is 108 bytes on Linux including the terminating NUL.
	if n := len(c.SocketPath()); n >= 108 {
		return fmt.Errorf("transport.socket_path resolves to %d bytes; Unix socket paths must be shorter than 108", n)
	}
	return nil
}

func (c *Config) validateBuffer() error {
	if c.Buffer.Width <= 0 || c.Buffer.Width > maxDimension {
		return fmt.Errorf("buffer.width must be between 1 and %d", maxDimension)
	}
	if c.Buffer.Height <= 0 || c.Buffer.Height > maxDimension {
		return fmt.Errorf("buffer.height must be between 1 and %d", maxDimension)
	}
	if len(c.Buffer.Format) != 4 {
		return fmt.Errorf("buffer.format must be a four character code, got %q", c.Buffer.Format)
	}
	if c.Buffer.Stride < 0 || (c.Buffer.Stride > 0 && c.Buffer.Stride < c.Buffer.Width*4) {
		return fmt.Errorf("buffer.stride must be 0 or at least width*4 (%d)", c.Buffer.Width*4)
	}
	if _, err := ParseModifier(c.Buffer.Modifier); err != nil {
		return fmt.Errorf("buffer.modifier: %w", err)
	}
	return nil
}

func (c *Config) validateTransfer() error {
	if c.Transfer.Count < 0 {
		return errors.New("transfer.count must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// ParseModifier converts a modifier setting ("linear", "invalid" or a hex or
// decimal integer) into its 64-bit value.
func ParseModifier(value string) (uint64, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "linear":
		return 0, nil
	case "invalid":
		return 0x00ffffffffffffff, nil
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognised modifier %q", value)
	}
	return parsed, nil
}
