package gpu

import (
	"fmt"
	"log/slog"
)

// Texture names a driver texture object.
type Texture uint32

// Image names a driver image object, the intermediate between a texture and
// a DMA-BUF.
type Image uintptr

// ExportInfo is the layout of an image as reported before export.
type ExportInfo struct {
	FourCC   uint32
	Planes   int
	Modifier uint64
}

// ExportPlane is the single exported plane. FD is a new descriptor owned by
// the caller.
type ExportPlane struct {
	FD     int
	Stride uint32
	Offset uint32
}

// ImportSpec describes a DMA-BUF to rebuild as an image. The driver does not
// take ownership of FD.
type ImportSpec struct {
	FD       int
	Width    int
	Height   int
	FourCC   uint32
	Modifier uint64
	Offset   uint32
	Stride   uint32
}

func (s ImportSpec) String() string {
	return fmt.Sprintf("fd=%d %dx%d fourcc=%#08x modifier=%#016x offset=%d stride=%d",
		s.FD, s.Width, s.Height, s.FourCC, s.Modifier, s.Offset, s.Stride)
}

// Driver is the bound set of graphics entry points a backend provides.
// Drivers are not safe for concurrent use unless they say otherwise.
type Driver interface {
	// CreateTexture uploads tightly packed RGBA8 pixels.
	CreateTexture(width, height int, pixels []byte) (Texture, error)
	// ReadTexture returns the texture content as tightly packed RGBA8.
	ReadTexture(tex Texture) (width, height int, pixels []byte, err error)
	DeleteTexture(tex Texture) error

	// CreateImage wraps an existing texture.
	CreateImage(tex Texture) (Image, error)
	Flush() error
	ExportQuery(img Image) (ExportInfo, error)
	Export(img Image) (ExportPlane, error)

	// ImportImage builds an image over a received DMA-BUF.
	ImportImage(spec ImportSpec) (Image, error)
	// BindImage creates a new texture whose storage is img.
	BindImage(img Image) (Texture, error)
	DestroyImage(img Image) error

	// Close releases the display connection and rendering context.
	Close() error
}

// Options configures NewHeadless.
type Options struct {
	// Backend names a registered driver. Empty selects "software".
	Backend string
	// RenderNode is an optional DRM render node hint, e.g. /dev/dri/renderD128.
	RenderNode string
	Logger     *slog.Logger
}

// Opener constructs a Driver. Failures should name the step that failed.
type Opener func(opts Options) (Driver, error)
