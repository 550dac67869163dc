// Package software is a pure-Go graphics backend whose textures live in
// memfd-backed shared memory.
//
// Exporting a texture hands out a duplicate of its memfd, and importing maps
// the received descriptor MAP_SHARED, so exporter and importer address the
// same pages just as two GPU contexts share a DMA-BUF. Only the single-plane
// linear AB24 layout is produced or accepted.
package software

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"

	"texshare/internal/gpu"
	"texshare/internal/logging"
	"texshare/internal/pattern"
)

// Backend is the registry name of this driver.
const Backend = "software"

const (
	// FourCCABGR8888 is DRM_FORMAT_ABGR8888 ('AB24'): R, G, B, A in byte order.
	FourCCABGR8888 uint32 = 'A' | 'B'<<8 | '2'<<16 | '4'<<24
	// ModifierLinear is DRM_FORMAT_MOD_LINEAR.
	ModifierLinear uint64 = 0
	// StrideAlign is the row alignment of exported buffers.
	StrideAlign = 64
)

func init() {
	gpu.Register(Backend, Open)
}

// Driver implements gpu.Driver on shared memory.
type Driver struct {
	mu       sync.Mutex
	logger   *slog.Logger
	next     uint32
	textures map[gpu.Texture]*surface
	images   map[gpu.Image]*surface
	closed   bool
}

// Open returns a new software driver. It fails only when the kernel lacks
// memfd support.
func Open(opts gpu.Options) (gpu.Driver, error) {
	probe, err := unix.MemfdCreate("texshare-probe", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, gpu.StepError(Backend, "memfd_create", err)
	}
	_ = unix.Close(probe)

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Driver{
		logger:   logger.With(logging.String("backend", Backend)),
		textures: make(map[gpu.Texture]*surface),
		images:   make(map[gpu.Image]*surface),
	}, nil
}

// AlignStride rounds a row of width RGBA8 pixels up to StrideAlign.
func AlignStride(width int) int {
	row := width * pattern.BytesPerPixel
	return (row + StrideAlign - 1) / StrideAlign * StrideAlign
}

func (d *Driver) id() uint32 {
	d.next++
	return d.next
}

func (d *Driver) checkOpen() error {
	if d.closed {
		return fmt.Errorf("software driver closed")
	}
	return nil
}

// CreateTexture allocates a memfd surface and uploads pixels into it.
func (d *Driver) CreateTexture(width, height int, pixels []byte) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	stride := AlignStride(width)
	strided, err := pattern.Pack(pixels, width, height, stride)
	if err != nil {
		return 0, fmt.Errorf("upload texture: %w", err)
	}
	s, err := newSurface(width, height, stride)
	if err != nil {
		return 0, err
	}
	copy(s.mem, strided)

	tex := gpu.Texture(d.id())
	d.textures[tex] = s
	d.logger.Debug("texture created",
		logging.Int("texture", int(tex)),
		logging.Int("width", width),
		logging.Int("height", height),
		logging.Int("stride", stride),
	)
	return tex, nil
}

// ReadTexture copies the texture content out as tightly packed pixels.
func (d *Driver) ReadTexture(tex gpu.Texture) (int, int, []byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.textures[tex]
	if !ok {
		return 0, 0, nil, fmt.Errorf("unknown texture %d", tex)
	}
	pixels, err := pattern.Unpack(s.mem[s.offset:], s.width, s.height, s.stride)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("read texture %d: %w", tex, err)
	}
	return s.width, s.height, pixels, nil
}

// DeleteTexture drops the texture's reference on its surface.
func (d *Driver) DeleteTexture(tex gpu.Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("unknown texture %d", tex)
	}
	delete(d.textures, tex)
	return s.release()
}

// CreateImage wraps a texture's surface.
func (d *Driver) CreateImage(tex gpu.Texture) (gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	s, ok := d.textures[tex]
	if !ok {
		return 0, fmt.Errorf("unknown texture %d", tex)
	}
	img := gpu.Image(d.id())
	d.images[img] = s.retain()
	return img, nil
}

// Flush is a no-op: writes to shared memory are visible immediately.
func (d *Driver) Flush() error {
	return nil
}

// ExportQuery reports the fixed single-plane linear layout.
func (d *Driver) ExportQuery(img gpu.Image) (gpu.ExportInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[img]; !ok {
		return gpu.ExportInfo{}, fmt.Errorf("unknown image %d", img)
	}
	return gpu.ExportInfo{FourCC: FourCCABGR8888, Planes: 1, Modifier: ModifierLinear}, nil
}

// Export duplicates the image's memfd.
func (d *Driver) Export(img gpu.Image) (gpu.ExportPlane, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.images[img]
	if !ok {
		return gpu.ExportPlane{}, fmt.Errorf("unknown image %d", img)
	}
	fd, err := unix.FcntlInt(uintptr(s.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return gpu.ExportPlane{}, fmt.Errorf("dup memfd: %w", err)
	}
	return gpu.ExportPlane{FD: fd, Stride: uint32(s.stride), Offset: uint32(s.offset)}, nil
}

// ImportImage maps a received buffer. The caller keeps ownership of spec.FD.
func (d *Driver) ImportImage(spec gpu.ImportSpec) (gpu.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	if spec.FourCC != FourCCABGR8888 {
		return 0, fmt.Errorf("format %#08x not supported", spec.FourCC)
	}
	if spec.Modifier != ModifierLinear {
		return 0, fmt.Errorf("modifier %#016x not supported", spec.Modifier)
	}
	s, err := mapSurface(spec)
	if err != nil {
		return 0, err
	}
	img := gpu.Image(d.id())
	d.images[img] = s
	d.logger.Debug("image imported", logging.String("spec", spec.String()))
	return img, nil
}

// BindImage creates a texture sharing the image's surface.
func (d *Driver) BindImage(img gpu.Image) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.images[img]
	if !ok {
		return 0, fmt.Errorf("unknown image %d", img)
	}
	tex := gpu.Texture(d.id())
	d.textures[tex] = s.retain()
	return tex, nil
}

// DestroyImage drops the image's reference on its surface.
func (d *Driver) DestroyImage(img gpu.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.images[img]
	if !ok {
		return fmt.Errorf("unknown image %d", img)
	}
	delete(d.images, img)
	return s.release()
}

// Close releases every remaining surface.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	var firstErr error
	for tex, s := range d.textures {
		if err := s.release(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.textures, tex)
	}
	for img, s := range d.images {
		if err := s.release(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.images, img)
	}
	return firstErr
}
