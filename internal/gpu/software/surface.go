package software

import (
	"fmt"

	"golang.org/x/sys/unix"

	"texshare/internal/gpu"
	"texshare/internal/pattern"
)

// surface is a mapped shared-memory buffer referenced by textures and images.
// Callers hold the driver lock.
type surface struct {
	fd     int
	mem    []byte
	width  int
	height int
	stride int
	offset int
	refs   int
}

func newSurface(width, height, stride int) (*surface, error) {
	size := stride * height
	fd, err := unix.MemfdCreate("texshare-texture", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("size memfd: %w", err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("map memfd: %w", err)
	}
	return &surface{fd: fd, mem: mem, width: width, height: height, stride: stride, refs: 1}, nil
}

func mapSurface(spec gpu.ImportSpec) (*surface, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", spec.Width, spec.Height)
	}
	if int(spec.Stride) < spec.Width*pattern.BytesPerPixel {
		return nil, fmt.Errorf("stride %d shorter than row of %d pixels", spec.Stride, spec.Width)
	}
	var st unix.Stat_t
	if err := unix.Fstat(spec.FD, &st); err != nil {
		return nil, fmt.Errorf("stat buffer: %w", err)
	}
	need := int64(spec.Offset) + int64(spec.Stride)*int64(spec.Height)
	if st.Size < need {
		return nil, fmt.Errorf("buffer holds %d bytes, layout needs %d", st.Size, need)
	}

	fd, err := unix.FcntlInt(uintptr(spec.FD), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("dup buffer: %w", err)
	}
	mem, err := unix.Mmap(fd, 0, int(need), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("map buffer: %w", err)
	}
	return &surface{
		fd:     fd,
		mem:    mem,
		width:  spec.Width,
		height: spec.Height,
		stride: int(spec.Stride),
		offset: int(spec.Offset),
		refs:   1,
	}, nil
}

func (s *surface) retain() *surface {
	s.refs++
	return s
}

func (s *surface) release() error {
	s.refs--
	if s.refs > 0 {
		return nil
	}
	var firstErr error
	if err := unix.Munmap(s.mem); err != nil {
		firstErr = fmt.Errorf("unmap surface: %w", err)
	}
	if err := unix.Close(s.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close surface: %w", err)
	}
	s.mem = nil
	s.fd = -1
	return firstErr
}
