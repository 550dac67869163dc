package dmabuf

import (
	"context"
	"fmt"

	"texshare/internal/gpu"
	"texshare/internal/handle"
	"texshare/internal/logging"
	"texshare/internal/xfer"
)

// Export creates an image from tex, queries its layout and exports it as a
// descriptor. The image is destroyed before returning; the descriptor's
// handle stays valid and belongs to the caller.
func Export(ctx context.Context, gc *gpu.Context, tex gpu.Texture) (*Descriptor, error) {
	driver := gc.Driver()
	logger := logging.WithContext(ctx, gc.Logger())

	img, err := driver.CreateImage(tex)
	if err != nil {
		return nil, xfer.Wrap(xfer.ErrGraphics, "dmabuf", "export", "create image from texture", err)
	}
	defer func() {
		if err := driver.DestroyImage(img); err != nil {
			logging.WarnWithContext(logger, "destroy exported image failed", "image_destroy_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the driver may leak the image until the context closes"),
				logging.String(logging.FieldImpact, "none for the exported descriptor"),
			)
		}
	}()

	if err := driver.Flush(); err != nil {
		return nil, xfer.Wrap(xfer.ErrGraphics, "dmabuf", "export", "flush", err)
	}

	info, err := driver.ExportQuery(img)
	if err != nil {
		return nil, xfer.Wrap(xfer.ErrGraphics, "dmabuf", "export", "query layout", err)
	}
	if info.Planes != 1 {
		return nil, xfer.Wrap(xfer.ErrUnsupportedFormat, "dmabuf", "export",
			fmt.Sprintf("format %s has %d planes, only single-plane buffers are supported", FourCC(info.FourCC), info.Planes), nil)
	}

	plane, err := driver.Export(img)
	if err != nil {
		return nil, xfer.Wrap(xfer.ErrGraphics, "dmabuf", "export", "export buffer", err)
	}
	if plane.FD < 0 {
		return nil, xfer.Wrap(xfer.ErrGraphics, "dmabuf", "export", "driver returned no descriptor", nil)
	}

	desc := &Descriptor{
		Handle:   handle.New(plane.FD),
		Format:   FourCC(info.FourCC),
		Modifier: Modifier(info.Modifier),
		Stride:   plane.Stride,
		Offset:   plane.Offset,
	}
	logger.Debug("texture exported",
		logging.String(logging.FieldEventType, "texture_exported"),
		logging.String("format", desc.Format.String()),
		logging.Hex("modifier", uint64(desc.Modifier)),
		logging.Int("stride", int(desc.Stride)),
		logging.Int("offset", int(desc.Offset)),
	)
	return desc, nil
}
