package transport

import (
	"log/slog"

	"texshare/internal/logging"
)

// Option configures a Listener or Conn.
type Option func(*options)

type options struct {
	backlog int
	logger  *slog.Logger
}

func defaultOptions() options {
	return options{backlog: 1, logger: logging.NewNop()}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.backlog == 0 {
		o.backlog = 1
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	return o
}

// WithBacklog sets the pending-connection queue length of a Listener. Zero
// selects the default of 1; a negative value makes Listen fail.
func WithBacklog(n int) Option {
	return func(o *options) {
		o.backlog = n
	}
}

// WithLogger attaches a logger. Component tagging is applied by the package.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
