package dmabuf

import (
	"context"
	"fmt"

	"texshare/internal/gpu"
	"texshare/internal/logging"
	"texshare/internal/xfer"
)

// Import rebuilds a texture over the buffer described by desc. width and
// height must match what the exporter allocated. On success the descriptor's
// handle is consumed; on failure it stays with the caller.
func Import(ctx context.Context, gc *gpu.Context, desc *Descriptor, width, height int) (gpu.Texture, error) {
	if desc == nil {
		return 0, xfer.Wrap(xfer.ErrImport, "dmabuf", "import", "nil descriptor", nil)
	}
	if width <= 0 || height <= 0 {
		return 0, xfer.Wrap(xfer.ErrImport, "dmabuf", "import", fmt.Sprintf("invalid dimensions %dx%d", width, height), nil)
	}
	fd, err := desc.Handle.Fd()
	if err != nil {
		return 0, xfer.Wrap(xfer.ErrImport, "dmabuf", "import", "descriptor handle", err)
	}

	driver := gc.Driver()
	logger := logging.WithContext(ctx, gc.Logger())

	spec := gpu.ImportSpec{
		FD:       fd,
		Width:    width,
		Height:   height,
		FourCC:   uint32(desc.Format),
		Modifier: uint64(desc.Modifier),
		Offset:   desc.Offset,
		Stride:   desc.Stride,
	}
	img, err := driver.ImportImage(spec)
	if err != nil {
		return 0, xfer.Wrap(xfer.ErrImport, "dmabuf", "import", "create image from buffer", err)
	}
	tex, err := driver.BindImage(img)
	if derr := driver.DestroyImage(img); derr != nil {
		logging.WarnWithContext(logger, "destroy imported image failed", "image_destroy_failed",
			logging.Error(derr),
			logging.String(logging.FieldErrorHint, "the driver may leak the image until the context closes"),
			logging.String(logging.FieldImpact, "none for the imported texture"),
		)
	}
	if err != nil {
		return 0, xfer.Wrap(xfer.ErrImport, "dmabuf", "import", "attach image to texture", err)
	}

	if err := desc.Handle.Close(); err != nil {
		logging.WarnWithContext(logger, "close imported handle failed", "handle_close_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the descriptor may leak until process exit"),
			logging.String(logging.FieldImpact, "none for the imported texture"),
		)
	}
	logger.Debug("texture imported",
		logging.String(logging.FieldEventType, "texture_imported"),
		logging.String("format", desc.Format.String()),
		logging.Int("texture", int(tex)),
		logging.Int("width", width),
		logging.Int("height", height),
	)
	return tex, nil
}
