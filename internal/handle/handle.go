// Package handle wraps an owned file descriptor whose lifetime moves between
// processes.
//
// A Handle has exactly one owner. Close is idempotent and releases the
// descriptor; Release hands the raw descriptor to a new owner and turns every
// later Close into a no-op. Callers defer Close right after acquiring a
// Handle so the descriptor is released on every exit path unless it was
// handed off.
package handle

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned when a consumed or closed handle is used again.
var ErrClosed = errors.New("handle closed")

// Handle owns one open file descriptor.
type Handle struct {
	mu sync.Mutex
	fd int
}

// New takes ownership of fd. A negative fd yields a closed handle.
func New(fd int) *Handle {
	if fd < 0 {
		return &Handle{fd: -1}
	}
	return &Handle{fd: fd}
}

// Fd returns the descriptor without transferring ownership.
func (h *Handle) Fd() (int, error) {
	if h == nil {
		return -1, ErrClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd < 0 {
		return -1, ErrClosed
	}
	return h.fd, nil
}

// Valid reports whether the handle still owns a descriptor.
func (h *Handle) Valid() bool {
	_, err := h.Fd()
	return err == nil
}

// Release transfers ownership of the descriptor to the caller.
func (h *Handle) Release() (int, error) {
	if h == nil {
		return -1, ErrClosed
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd < 0 {
		return -1, ErrClosed
	}
	fd := h.fd
	h.fd = -1
	return fd, nil
}

// Close releases the descriptor. Calling Close again, or after Release, is a
// no-op.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd < 0 {
		return nil
	}
	fd := h.fd
	h.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close fd %d: %w", fd, err)
	}
	return nil
}

// Dup returns a new Handle owning a close-on-exec duplicate of the descriptor.
func (h *Handle) Dup() (*Handle, error) {
	fd, err := h.Fd()
	if err != nil {
		return nil, err
	}
	dup, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("dup fd %d: %w", fd, err)
	}
	return New(dup), nil
}

// String formats the handle for logs.
func (h *Handle) String() string {
	fd, err := h.Fd()
	if err != nil {
		return "fd(closed)"
	}
	return fmt.Sprintf("fd(%d)", fd)
}
