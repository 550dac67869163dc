package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"texshare/internal/logging"
	"texshare/internal/xfer"
)

var (
	// ErrAlreadyAccepted is returned when Accept is called on a listener that
	// already produced (or is producing) its connection.
	ErrAlreadyAccepted = errors.New("listener already accepted a peer")
	// ErrAddressInUse is returned when another process holds the socket path.
	ErrAddressInUse = errors.New("socket path in use by another listener")
	// ErrListenerClosed is returned by Accept after Close.
	ErrListenerClosed = errors.New("listener closed")
)

// Listener accepts a single peer on a Unix socket path.
type Listener struct {
	path   string
	ln     *net.UnixListener
	lock   *flock.Flock
	logger *slog.Logger

	mu       sync.Mutex
	accepted bool
	closed   bool
}

// Listen binds path and starts listening with the configured backlog. A stale
// socket left by a crashed exporter is removed; any other file at path is an
// error.
func Listen(path string, opts ...Option) (*Listener, error) {
	o := applyOptions(opts)
	logger := logging.NewComponentLogger(o.logger, "transport")

	if o.backlog < 0 {
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "listen", fmt.Sprintf("invalid backlog %d", o.backlog), nil)
	}

	lock, err := lockPath(path + ".lock")
	if err != nil {
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "listen", "lock socket path", err)
	}
	if lock == nil {
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "listen", path, ErrAddressInUse)
	}

	ln, err := bindUnix(path, o.backlog)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	logger.Debug("listening",
		logging.String(logging.FieldEventType, "listen"),
		logging.String("socket", path),
		logging.Int("backlog", o.backlog),
	)
	return &Listener{path: path, ln: ln, lock: lock, logger: logger}, nil
}

// lockPath takes the exclusive lock at path and returns nil when another
// process holds it. Close unlinks the lock file, so a lock won on a file that
// was unlinked meanwhile is retried against the current one.
func lockPath(path string) (*flock.Flock, error) {
	for attempt := 0; attempt < 3; attempt++ {
		lock := flock.New(path)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, nil
		}
		held, err := lock.Stat()
		if err != nil {
			_ = lock.Unlock()
			return nil, err
		}
		current, err := os.Stat(path)
		if err == nil && os.SameFile(held, current) {
			return lock, nil
		}
		_ = lock.Unlock()
	}
	return nil, nil
}

func bindUnix(path string, backlog int) (*net.UnixListener, error) {
	if err := removeStale(path); err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "listen", "create socket", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "listen", "bind "+path, err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		_ = os.Remove(path)
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "listen", "listen "+path, err)
	}

	file := os.NewFile(uintptr(fd), path)
	generic, err := net.FileListener(file)
	_ = file.Close()
	if err != nil {
		_ = os.Remove(path)
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "listen", "wrap listener", err)
	}
	ln, ok := generic.(*net.UnixListener)
	if !ok {
		_ = generic.Close()
		_ = os.Remove(path)
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "listen", fmt.Sprintf("unexpected listener type %T", generic), nil)
	}
	return ln, nil
}

func removeStale(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return xfer.Wrap(xfer.ErrTransport, "transport", "listen", "stat "+path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return xfer.Wrap(xfer.ErrTransport, "transport", "listen", path+" exists and is not a socket", nil)
	}
	if err := os.Remove(path); err != nil {
		return xfer.Wrap(xfer.ErrTransport, "transport", "listen", "remove stale socket", err)
	}
	return nil
}

// Path returns the filesystem address.
func (l *Listener) Path() string {
	return l.path
}

// Accept blocks until one peer connects, ctx ends, or the listener closes.
// Only the first successful call yields a connection.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	l.mu.Lock()
	switch {
	case l.closed:
		l.mu.Unlock()
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "accept", "", ErrListenerClosed)
	case l.accepted:
		l.mu.Unlock()
		return nil, xfer.Wrap(xfer.ErrTransport, "transport", "accept", "", ErrAlreadyAccepted)
	}
	l.accepted = true
	l.mu.Unlock()

	stop := bindDeadline(ctx, l.ln.SetDeadline)
	conn, err := l.ln.AcceptUnix()
	stop()
	if err != nil {
		l.mu.Lock()
		l.accepted = false
		l.mu.Unlock()
		return nil, ioError(ctx, "accept", err)
	}

	c := newConn(conn, l.logger)
	l.logger.Info("accepted peer",
		logging.String(logging.FieldEventType, "peer_accepted"),
		logging.String("socket", l.path),
		logging.Int("peer_pid", int(c.peer.PID)),
		logging.Int("peer_uid", int(c.peer.UID)),
	)
	return c, nil
}

// Close stops listening, removes the socket path and releases the path lock.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	var errs []error
	if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	// Unlink while still holding the lock; lockPath rejects a stale inode.
	if err := os.Remove(l.lock.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := l.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return xfer.Wrap(xfer.ErrTransport, "transport", "close listener", l.path, err)
	}
	return nil
}
