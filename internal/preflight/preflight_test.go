package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"texshare/internal/gpu"
	_ "texshare/internal/gpu/software"
	"texshare/internal/testsupport"
	"texshare/internal/transport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSocket_Free(t *testing.T) {
	result := CheckSocket(testsupport.SocketPath(t))
	if !result.Passed || !strings.Contains(result.Detail, "free") {
		t.Fatalf("expected free socket, got %+v", result)
	}
}

func TestCheckSocket_RegularFile(t *testing.T) {
	path := testsupport.SocketPath(t)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if result := CheckSocket(path); result.Passed {
		t.Fatalf("expected failure for regular file, got %+v", result)
	}
}

func TestCheckSocket_Listening(t *testing.T) {
	path := testsupport.SocketPath(t)
	ln, err := transport.Listen(path)
	if err != nil {
		testsupport.SkipIfDenied(t, "unix listener", err)
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	result := CheckSocket(path)
	if !result.Passed || !strings.Contains(result.Detail, "listening") {
		t.Fatalf("expected listening socket, got %+v", result)
	}
}

func TestCheckSocket_StaleLeavesNoLockFile(t *testing.T) {
	path := testsupport.SocketPath(t)
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	defer unix.Close(fd)
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		testsupport.SkipIfDenied(t, "unix bind", err)
		t.Fatalf("bind: %v", err)
	}

	result := CheckSocket(path)
	if !result.Passed || !strings.Contains(result.Detail, "stale") {
		t.Fatalf("expected stale socket, got %+v", result)
	}
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Fatalf("check created a lock file: %v", err)
	}
}

func TestLockHeld_UnlockedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sock.lock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	held, err := lockHeld(path)
	if err != nil {
		t.Fatalf("lockHeld: %v", err)
	}
	if held {
		t.Fatal("unlocked file reported as held")
	}
}

func TestFlockListed(t *testing.T) {
	locks := "1: FLOCK  ADVISORY  WRITE 4242 fd:01:131 0 EOF\n" +
		"1: -> FLOCK  ADVISORY  WRITE 4243 fd:01:131 0 EOF\n" +
		"2: POSIX  ADVISORY  WRITE 77 00:1a:99 0 EOF\n"

	tests := []struct {
		name         string
		major, minor uint32
		ino          uint64
		want         bool
	}{
		{name: "granted flock", major: 0xfd, minor: 1, ino: 131, want: true},
		{name: "other inode", major: 0xfd, minor: 1, ino: 132},
		{name: "posix lock ignored", major: 0, minor: 0x1a, ino: 99},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := flockListed(locks, tc.major, tc.minor, tc.ino); got != tc.want {
				t.Fatalf("flockListed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCheckBackend(t *testing.T) {
	if result := CheckBackend(context.Background(), "no-such-backend", ""); result.Passed {
		t.Fatalf("expected failure for unknown backend, got %+v", result)
	}
	result := CheckBackend(context.Background(), "software", "")
	if !result.Passed {
		if strings.Contains(result.Detail, "memfd") {
			t.Skipf("memfd unavailable: %s", result.Detail)
		}
		t.Fatalf("expected software backend to open, got %+v", result)
	}
}

func TestCheckRenderNode(t *testing.T) {
	if result := CheckRenderNode("software", ""); !result.Passed {
		t.Fatalf("software backend needs no render node: %+v", result)
	}
	if result := CheckRenderNode("egl", filepath.Join(t.TempDir(), "renderD999")); result.Passed {
		t.Fatalf("expected failure for missing node, got %+v", result)
	}
}

func TestRunAllCoversEveryCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(context.Background(), cfg)
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Socket directory", "Socket", "Graphics backend", "Render node", "Journal directory"} {
		if !names[want] {
			t.Fatalf("missing check %q in %+v", want, results)
		}
	}
	if !gpu.Registered("software") {
		t.Fatal("software backend should be registered by the blank import")
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("nil config should produce no results")
	}
}

func TestFailed(t *testing.T) {
	got := Failed([]Result{{Name: "a", Passed: true}, {Name: "b"}})
	if len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("Failed = %+v", got)
	}
}
