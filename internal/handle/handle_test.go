package handle_test

import (
	"errors"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"texshare/internal/handle"
)

func openPipe(t *testing.T) (int, int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	return fds[0], fds[1]
}

func fdOpen(fd int) bool {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	return err == nil
}

func TestCloseIsIdempotent(t *testing.T) {
	r, w := openPipe(t)
	defer unix.Close(w)

	h := handle.New(r)
	if !h.Valid() {
		t.Fatal("expected valid handle")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if fdOpen(r) {
		t.Fatal("expected descriptor to be closed")
	}
	if _, err := h.Fd(); !errors.Is(err, handle.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReleaseHandsOffOwnership(t *testing.T) {
	r, w := openPipe(t)
	defer unix.Close(w)

	h := handle.New(r)
	fd, err := h.Release()
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	defer unix.Close(fd)
	if err := h.Close(); err != nil {
		t.Fatalf("Close after Release: %v", err)
	}
	if !fdOpen(fd) {
		t.Fatal("released descriptor must stay open")
	}
	if _, err := h.Release(); !errors.Is(err, handle.ErrClosed) {
		t.Fatalf("expected ErrClosed on second release, got %v", err)
	}
}

func TestDupIsIndependent(t *testing.T) {
	r, w := openPipe(t)
	defer unix.Close(w)

	h := handle.New(r)
	dup, err := h.Dup()
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	dupFd, err := dup.Fd()
	if err != nil {
		t.Fatalf("dup Fd: %v", err)
	}
	if _, err := unix.Write(w, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := os.NewFile(uintptr(dupFd), "dup")
	buf := make([]byte, 1)
	if _, err := f.Read(buf); err != nil || buf[0] != 'x' {
		t.Fatalf("read through dup: %v %q", err, buf)
	}
	_ = f.Close()
}

func TestNilAndNegativeHandles(t *testing.T) {
	var h *handle.Handle
	if h.Valid() {
		t.Fatal("nil handle must not be valid")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
	if handle.New(-1).Valid() {
		t.Fatal("negative fd must yield closed handle")
	}
}
