package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"texshare/internal/logging"
	"texshare/internal/xfer"
)

// DefaultBackend is used when Options.Backend is empty.
const DefaultBackend = "software"

// Context is an open headless graphics context.
type Context struct {
	backend string
	driver  Driver
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewHeadless opens the requested backend without any window surface.
func NewHeadless(opts Options) (*Context, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Backend))
	if name == "" {
		name = DefaultBackend
	}
	logger := logging.NewComponentLogger(opts.Logger, "gpu")
	opts.Logger = logger

	open, ok := lookup(name)
	if !ok {
		return nil, xfer.Wrap(xfer.ErrGraphics, "gpu", "open",
			fmt.Sprintf("unknown backend %q (available: %s)", name, strings.Join(Backends(), ", ")), nil)
	}
	driver, err := open(opts)
	if err != nil {
		if !errors.Is(err, xfer.ErrGraphics) {
			err = xfer.Wrap(xfer.ErrGraphics, "gpu", "open", name, err)
		}
		return nil, err
	}
	logger.Debug("graphics context ready",
		logging.String(logging.FieldEventType, "gpu_open"),
		logging.String("backend", name),
	)
	return &Context{backend: name, driver: driver, logger: logger}, nil
}

// NewContext wraps an already open driver. NewHeadless is the usual entry
// point; this one serves drivers built outside the registry.
func NewContext(backend string, driver Driver, logger *slog.Logger) *Context {
	return &Context{
		backend: backend,
		driver:  driver,
		logger:  logging.NewComponentLogger(logger, "gpu"),
	}
}

// StepError reports which initialization step of a backend failed.
func StepError(backend, step string, err error) error {
	return xfer.Wrap(xfer.ErrGraphics, "gpu", backend, step, err)
}

// Driver returns the bound entry points.
func (c *Context) Driver() Driver {
	return c.driver
}

// Logger returns the context's component logger.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// Backend returns the backend name.
func (c *Context) Backend() string {
	return c.backend
}

// Close tears down the context. It is safe to call more than once.
func (c *Context) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		if err := c.driver.Close(); err != nil {
			c.closeErr = xfer.Wrap(xfer.ErrGraphics, "gpu", "close", c.backend, err)
		}
	})
	return c.closeErr
}
