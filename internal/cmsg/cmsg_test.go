package cmsg_test

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"texshare/internal/cmsg"
	"texshare/internal/xfer"
)

func TestRoundTrip(t *testing.T) {
	for _, fd := range []int{0, 1, 3, 255, 1 << 20, math.MaxInt32} {
		buf := make([]byte, cmsg.Space(cmsg.HandleSize))
		n, err := cmsg.Encode(buf, []int{fd})
		if err != nil {
			t.Fatalf("Encode(%d): %v", fd, err)
		}
		if n != cmsg.RightsSpace {
			t.Fatalf("Encode wrote %d bytes, want %d", n, cmsg.RightsSpace)
		}
		got, err := cmsg.Decode(buf[:n])
		if err != nil {
			t.Fatalf("Decode(%d): %v", fd, err)
		}
		if got != fd {
			t.Fatalf("round trip: got %d want %d", got, fd)
		}
	}
}

func TestEncodeMatchesKernelLayout(t *testing.T) {
	buf := make([]byte, cmsg.RightsSpace)
	if _, err := cmsg.Encode(buf, []int{7}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := unix.UnixRights(7); !bytes.Equal(buf, want) {
		t.Fatalf("layout mismatch:\n got %x\nwant %x", buf, want)
	}
}

func TestSpaceIsStable(t *testing.T) {
	for _, n := range []int{0, 1, 4, 8, 13} {
		first, second := cmsg.Space(n), cmsg.Space(n)
		if first != second {
			t.Fatalf("Space(%d) not stable: %d vs %d", n, first, second)
		}
		if first < unix.SizeofCmsghdr+n {
			t.Fatalf("Space(%d) = %d, smaller than header plus data", n, first)
		}
		if first%int(unsafe.Sizeof(uintptr(0))) != 0 {
			t.Fatalf("Space(%d) = %d is not aligned", n, first)
		}
	}
	if cmsg.RightsLen > cmsg.RightsSpace {
		t.Fatalf("RightsLen %d exceeds RightsSpace %d", cmsg.RightsLen, cmsg.RightsSpace)
	}
	if cmsg.DataOffset()+cmsg.HandleSize != cmsg.RightsLen {
		t.Fatalf("data offset %d + %d != %d", cmsg.DataOffset(), cmsg.HandleSize, cmsg.RightsLen)
	}
}

func TestEncodePreconditions(t *testing.T) {
	if _, err := cmsg.Encode(make([]byte, cmsg.RightsSpace-1), []int{3}); !errors.Is(err, cmsg.ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if _, err := cmsg.Encode(make([]byte, 64), []int{3, 4}); !errors.Is(err, cmsg.ErrHandleCount) {
		t.Fatalf("expected ErrHandleCount, got %v", err)
	}
	if _, err := cmsg.Encode(make([]byte, 64), nil); !errors.Is(err, cmsg.ErrHandleCount) {
		t.Fatalf("expected ErrHandleCount for no handles, got %v", err)
	}
}

func TestDecodeAbsentControlData(t *testing.T) {
	_, err := cmsg.Decode(nil)
	if !errors.Is(err, xfer.ErrNoHandle) {
		t.Fatalf("expected ErrNoHandle, got %v", err)
	}
	if errors.Is(err, xfer.ErrMalformed) {
		t.Fatal("absent control data must not be reported as malformed")
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	buf := unix.UnixRights(3, 4)
	fd, err := cmsg.Decode(buf)
	if !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for two-handle record, got %v", err)
	}
	if fd != -1 {
		t.Fatalf("malformed decode returned handle %d", fd)
	}

	single := unix.UnixRights(3)
	hdr := (*unix.Cmsghdr)(unsafe.Pointer(&single[0]))
	hdr.SetLen(cmsg.RightsLen - 1)
	if _, err := cmsg.Decode(single); !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for short declared length, got %v", err)
	}
}

func TestDecodeRejectsWrongLevelAndType(t *testing.T) {
	buf := unix.UnixRights(3)
	hdr := (*unix.Cmsghdr)(unsafe.Pointer(&buf[0]))
	hdr.Level = unix.SOL_IP
	if _, err := cmsg.Decode(buf); !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for wrong level, got %v", err)
	}

	buf = unix.UnixRights(3)
	hdr = (*unix.Cmsghdr)(unsafe.Pointer(&buf[0]))
	hdr.Type = unix.SCM_CREDENTIALS
	if _, err := cmsg.Decode(buf); !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for wrong type, got %v", err)
	}
}

func TestDecodeRejectsTruncatedBuffers(t *testing.T) {
	buf := unix.UnixRights(3)
	if _, err := cmsg.Decode(buf[:unix.SizeofCmsghdr-1]); !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for truncated header, got %v", err)
	}
	if _, err := cmsg.Decode(buf[:cmsg.RightsLen-1]); !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for truncated data, got %v", err)
	}
}

func TestDrainClosesReceivedDescriptors(t *testing.T) {
	pair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Skipf("socketpair unavailable: %v", err)
	}
	defer unix.Close(pair[0])
	defer unix.Close(pair[1])

	var pipe [2]int
	if err := unix.Pipe2(pipe[:], unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	defer unix.Close(pipe[0])
	defer unix.Close(pipe[1])

	if err := unix.Sendmsg(pair[0], []byte{1}, unix.UnixRights(pipe[0], pipe[1]), nil, 0); err != nil {
		t.Fatalf("sendmsg: %v", err)
	}
	payload := make([]byte, 1)
	oob := make([]byte, cmsg.Space(2*cmsg.HandleSize))
	_, oobn, _, _, err := unix.Recvmsg(pair[1], payload, oob, 0)
	if err != nil {
		t.Fatalf("recvmsg: %v", err)
	}
	if _, err := cmsg.Decode(oob[:oobn]); !errors.Is(err, xfer.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if closed := cmsg.Drain(oob[:oobn]); closed != 2 {
		t.Fatalf("Drain closed %d descriptors, want 2", closed)
	}
}
