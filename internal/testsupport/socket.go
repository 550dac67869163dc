package testsupport

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

// SocketPath returns a short, unused socket path in a fresh directory that is
// removed when the test ends.
func SocketPath(t testing.TB) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "txs-")
	if err != nil {
		t.Fatalf("create socket dir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return filepath.Join(dir, "tex_socket")
}

// SkipIfDenied skips the test when err shows the sandbox forbids the
// operation (Unix sockets, memfd or netlink).
func SkipIfDenied(t testing.TB, what string, err error) {
	t.Helper()

	if err == nil {
		return
	}
	if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.ENOSYS) ||
		strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("skipping %s: %v", what, err)
	}
}
