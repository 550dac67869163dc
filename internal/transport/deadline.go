package transport

import (
	"context"
	"errors"
	"time"

	"texshare/internal/xfer"
)

var expired = time.Unix(1, 0)

// bindDeadline applies the ctx deadline through set and arranges for
// cancellation to expire it immediately. The returned func clears both.
func bindDeadline(ctx context.Context, set func(time.Time) error) func() {
	if deadline, ok := ctx.Deadline(); ok {
		_ = set(deadline)
	} else {
		_ = set(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = set(expired)
	})
	return func() {
		stop()
		_ = set(time.Time{})
	}
}

func ioError(ctx context.Context, operation string, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		err = errors.Join(err, cause)
	}
	return xfer.Wrap(xfer.ErrTransport, "transport", operation, "", err)
}
