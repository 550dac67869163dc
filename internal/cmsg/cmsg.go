package cmsg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"texshare/internal/xfer"
)

// HandleSize is the size of one descriptor in the record data region.
const HandleSize = 4

var (
	// ErrShortBuffer is returned by Encode when the buffer is smaller than
	// RightsSpace.
	ErrShortBuffer = errors.New("control buffer smaller than required capacity")
	// ErrHandleCount is returned by Encode when asked to carry anything but
	// exactly one descriptor.
	ErrHandleCount = errors.New("exactly one handle per record is supported")
)

var (
	// RightsSpace is the buffer capacity needed for one descriptor record,
	// including alignment padding.
	RightsSpace = Space(HandleSize)
	// RightsLen is the declared length of a single-descriptor record.
	RightsLen = Len(HandleSize)
)

// Space returns the number of bytes a control buffer must reserve for a
// record carrying dataLen bytes.
func Space(dataLen int) int {
	return unix.CmsgSpace(dataLen)
}

// Len returns the declared record length for dataLen bytes of data.
func Len(dataLen int) int {
	return unix.CmsgLen(dataLen)
}

// DataOffset returns the offset of the data region inside a record.
func DataOffset() int {
	return unix.CmsgLen(0)
}

// Encode writes one SCM_RIGHTS record for fds into buf and returns the number
// of bytes used. Padding between the declared length and RightsSpace is
// zeroed.
func Encode(buf []byte, fds []int) (int, error) {
	if len(fds) != 1 {
		return 0, fmt.Errorf("%w: got %d", ErrHandleCount, len(fds))
	}
	if len(buf) < RightsSpace {
		return 0, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(buf), RightsSpace)
	}

	var hdr unix.Cmsghdr
	hdr.Level = unix.SOL_SOCKET
	hdr.Type = unix.SCM_RIGHTS
	hdr.SetLen(RightsLen)

	record := buf[:RightsSpace]
	clear(record)
	copy(record, unsafe.Slice((*byte)(unsafe.Pointer(&hdr)), unix.SizeofCmsghdr))
	binary.NativeEndian.PutUint32(record[DataOffset():], uint32(int32(fds[0])))
	return RightsSpace, nil
}

// Decode extracts the descriptor from the first record in buf.
func Decode(buf []byte) (int, error) {
	if len(buf) == 0 {
		return -1, xfer.Wrap(xfer.ErrNoHandle, "cmsg", "decode", "no control data", nil)
	}
	if len(buf) < unix.SizeofCmsghdr {
		return -1, malformed("truncated header: %d bytes", len(buf))
	}

	var hdr unix.Cmsghdr
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&hdr)), unix.SizeofCmsghdr), buf)

	if uint64(hdr.Len) != uint64(RightsLen) {
		return -1, malformed("declared length %d, want %d", uint64(hdr.Len), RightsLen)
	}
	if hdr.Level != unix.SOL_SOCKET {
		return -1, malformed("level %d, want SOL_SOCKET", hdr.Level)
	}
	if hdr.Type != unix.SCM_RIGHTS {
		return -1, malformed("type %d, want SCM_RIGHTS", hdr.Type)
	}
	if len(buf) < RightsLen {
		return -1, malformed("record truncated: %d of %d bytes", len(buf), RightsLen)
	}
	return int(int32(binary.NativeEndian.Uint32(buf[DataOffset():]))), nil
}

// Drain closes every descriptor it can find in buf. Used when a message is
// rejected so that descriptors the kernel already installed do not leak.
func Drain(buf []byte) int {
	msgs, err := unix.ParseSocketControlMessage(buf)
	if err != nil {
		return 0
	}
	closed := 0
	for i := range msgs {
		if msgs[i].Header.Level != unix.SOL_SOCKET || msgs[i].Header.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			if unix.Close(fd) == nil {
				closed++
			}
		}
	}
	return closed
}

func malformed(format string, args ...any) error {
	return xfer.Wrap(xfer.ErrMalformed, "cmsg", "decode", fmt.Sprintf(format, args...), nil)
}
