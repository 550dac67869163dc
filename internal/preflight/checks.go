package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"texshare/internal/drmwatch"
	"texshare/internal/gpu"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSocket inspects the socket path without connecting, so a waiting
// exporter does not mistake the check for its importer. The exporter's path
// lock tells a live socket from one left behind by a crash.
func CheckSocket(path string) Result {
	const name = "Socket"

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (free)", path)}
	}
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: exists and is not a socket)", path)}
	}

	held, err := lockHeld(path + ".lock")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: lock: %v)", path, err)}
	}
	if held {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (exporter listening)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (stale, replaced on next serve)", path)}
}

// lockHeld reports whether some process holds the flock on path. It reads
// /proc/locks and never takes the lock itself, so a serve starting during
// the check is not turned away. A missing lock file means nobody holds it.
func lockHeld(path string) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, err
	}
	data, err := os.ReadFile(procLocks)
	if err != nil {
		return false, err
	}
	return flockListed(string(data), unix.Major(uint64(st.Dev)), unix.Minor(uint64(st.Dev)), st.Ino), nil
}

var procLocks = "/proc/locks"

// flockListed scans /proc/locks content for a granted FLOCK on the inode.
// Lines look like "1: FLOCK  ADVISORY  WRITE 4242 fd:01:131 0 EOF"; waiters
// carry an extra "->" field and are skipped.
func flockListed(locks string, major, minor uint32, ino uint64) bool {
	want := fmt.Sprintf("%02x:%02x:%d", major, minor, ino)
	for _, line := range strings.Split(locks, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 || fields[1] != "FLOCK" {
			continue
		}
		if fields[5] == want {
			return true
		}
	}
	return false
}

// CheckBackend opens and closes the configured graphics backend.
func CheckBackend(_ context.Context, backend, renderNode string) Result {
	const name = "Graphics backend"

	if backend == "" {
		backend = gpu.DefaultBackend
	}
	if !gpu.Registered(backend) {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not compiled in; available: %s)",
			backend, strings.Join(gpu.Backends(), ", "))}
	}
	gc, err := gpu.NewHeadless(gpu.Options{Backend: backend, RenderNode: renderNode})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", backend, err)}
	}
	_ = gc.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (context ok)", backend)}
}

// CheckRenderNode verifies a DRM render node exists when the backend needs
// one.
func CheckRenderNode(backend, renderNode string) Result {
	const name = "Render node"

	if backend != "egl" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("not required by %s backend", backend)}
	}
	if renderNode != "" {
		if _, err := os.Stat(renderNode); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", renderNode, err)}
		}
		if err := unix.Access(renderNode, unix.R_OK|unix.W_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", renderNode, err)}
		}
		return Result{Name: name, Passed: true, Detail: renderNode}
	}
	nodes, err := drmwatch.RenderNodes()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	if len(nodes) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("no device matches %s", drmwatch.RenderNodeGlob)}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(nodes, ", ")}
}
