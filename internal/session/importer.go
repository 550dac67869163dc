package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"texshare/internal/config"
	"texshare/internal/dmabuf"
	"texshare/internal/fileutil"
	"texshare/internal/gpu"
	"texshare/internal/journal"
	"texshare/internal/logging"
	"texshare/internal/pattern"
	"texshare/internal/transport"
	"texshare/internal/wire"
	"texshare/internal/xfer"
)

// dialInterval is how often the importer retries a socket nobody listens on yet.
const dialInterval = 100 * time.Millisecond

// Importer fetches one buffer from an exporter.
type Importer struct {
	Config *config.Config
	GPU    *gpu.Context
	Logger *slog.Logger
	// Journal records the outcome. nil disables recording.
	Journal *journal.Store
	// SnapshotPath, when set, receives the imported pixels as a BMP file.
	SnapshotPath string
}

// Result describes a completed import.
type Result struct {
	TransferID string
	Width      int
	Height     int
	Format     dmabuf.FourCC
	Modifier   dmabuf.Modifier
	Stride     uint32
	Offset     uint32
	Peer       transport.Credentials
	// Metadata reports whether the layout came from an Announce rather than
	// local configuration.
	Metadata bool
	// Digest is the BLAKE3 hex digest of the pixels read back, empty when
	// verification is off.
	Digest   string
	Verified bool
	Mismatch *pattern.Mismatch
	Pixels   []byte
}

// Fetch connects to the exporter, imports the shared buffer and reads it
// back. A Result with Verified false and a nil error means the import worked
// but the pixels differ; callers decide how to treat that.
func (im *Importer) Fetch(ctx context.Context) (*Result, error) {
	if im.Config == nil || im.GPU == nil {
		return nil, xfer.Wrap(xfer.ErrConfiguration, "importer", "fetch", "config and graphics context are required", nil)
	}
	cfg := im.Config
	base := logging.NewComponentLogger(im.Logger, "importer")
	ctx = xfer.WithRole(ctx, xfer.RoleImporter)

	dialCtx := ctx
	if timeout := cfg.ConnectTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := transport.DialWait(dialCtx, cfg.SocketPath(), dialInterval, transport.WithLogger(im.Logger))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	msg, err := conn.Receive(ctx, cfg.Transport.ReceiveBuffer)
	if err != nil {
		return nil, err
	}
	if msg.Handle == nil {
		return nil, xfer.Wrap(xfer.ErrNoHandle, "importer", "receive", fmt.Sprintf("%d payload bytes without a descriptor", len(msg.Payload)), nil)
	}

	res := &Result{Peer: conn.Peer()}
	desc, err := im.layout(msg, res)
	if err != nil {
		_ = msg.Handle.Close()
		return nil, err
	}
	defer desc.Close()

	ctx = xfer.WithTransferID(ctx, res.TransferID)
	logger := logging.WithContext(ctx, base)
	logger.Info("handle received",
		logging.String(logging.FieldEventType, "handle_received"),
		logging.String("peer", res.Peer.String()),
		logging.Bool("metadata", res.Metadata),
		logging.String("descriptor", desc.String()),
	)

	entry := &journal.Entry{
		TransferID: res.TransferID,
		Role:       journal.RoleImport,
		PeerPID:    res.Peer.PID,
		PeerUID:    res.Peer.UID,
		Width:      res.Width,
		Height:     res.Height,
		Format:     res.Format.String(),
		Modifier:   res.Modifier.String(),
		Stride:     res.Stride,
		Offset:     res.Offset,
	}

	tex, err := dmabuf.Import(ctx, im.GPU, desc, res.Width, res.Height)
	if err != nil {
		entry.Status = journal.StatusFailed
		entry.Error = err.Error()
		im.finish(ctx, logger, conn, entry, wire.Ack{TransferID: res.TransferID, Detail: err.Error()})
		return nil, err
	}
	driver := im.GPU.Driver()
	defer func() {
		if err := driver.DeleteTexture(tex); err != nil {
			logger.Debug("delete texture failed", logging.Error(err))
		}
	}()
	entry.Status = journal.StatusImported

	if cfg.Transfer.Verify || im.SnapshotPath != "" {
		if err := im.readBack(tex, res, msg.Payload); err != nil {
			entry.Status = journal.StatusFailed
			entry.Error = err.Error()
			im.finish(ctx, logger, conn, entry, wire.Ack{TransferID: res.TransferID, Detail: err.Error()})
			return nil, err
		}
		entry.Digest = res.Digest
		entry.Verified = res.Verified
		if res.Mismatch != nil {
			entry.Error = res.Mismatch.String()
		}
	}

	if im.SnapshotPath != "" {
		if err := writeSnapshot(im.SnapshotPath, res); err != nil {
			logging.WarnWithContext(logger, "snapshot not written", "snapshot_failed",
				logging.Error(err),
				logging.String("path", im.SnapshotPath),
				logging.String(logging.FieldErrorHint, "check the snapshot directory is writable"),
				logging.String(logging.FieldImpact, "no image file for this transfer"),
			)
		}
	}

	ack := wire.Ack{TransferID: res.TransferID, Verified: res.Verified}
	if res.Mismatch != nil {
		ack.Detail = res.Mismatch.String()
	}
	im.finish(ctx, logger, conn, entry, ack)

	logger.Info("import complete",
		logging.String(logging.FieldEventType, "import_complete"),
		logging.Int("width", res.Width),
		logging.Int("height", res.Height),
		logging.Bool("verified", res.Verified),
	)
	return res, nil
}

// layout resolves the buffer geometry either from the Announce in the
// payload or, for a bare liveness byte, from configuration.
func (im *Importer) layout(msg transport.Message, res *Result) (*dmabuf.Descriptor, error) {
	cfg := im.Config
	announce, ok, err := wire.Decode(msg.Payload)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := announce.Validate(); err != nil {
			return nil, err
		}
		desc := announce.Descriptor()
		desc.Handle = msg.Handle
		res.TransferID = announce.TransferID
		res.Width = int(announce.Width)
		res.Height = int(announce.Height)
		res.Metadata = true
		fillLayout(res, &desc)
		return &desc, nil
	}

	format, err := dmabuf.ParseFourCC(cfg.Buffer.Format)
	if err != nil {
		return nil, err
	}
	modifier, err := dmabuf.ParseModifier(cfg.Buffer.Modifier)
	if err != nil {
		return nil, err
	}
	desc := &dmabuf.Descriptor{
		Handle:   msg.Handle,
		Format:   format,
		Modifier: modifier,
		Stride:   uint32(cfg.BufferStride()),
	}
	res.TransferID = uuid.NewString()
	res.Width = cfg.Buffer.Width
	res.Height = cfg.Buffer.Height
	fillLayout(res, desc)
	return desc, nil
}

func fillLayout(res *Result, desc *dmabuf.Descriptor) {
	res.Format = desc.Format
	res.Modifier = desc.Modifier
	res.Stride = desc.Stride
	res.Offset = desc.Offset
}

// readBack copies the imported pixels into res and checks them against the
// gradient and, when announced, the exporter's digest.
func (im *Importer) readBack(tex gpu.Texture, res *Result, payload []byte) error {
	w, h, pixels, err := im.GPU.Driver().ReadTexture(tex)
	if err != nil {
		return xfer.Wrap(xfer.ErrGraphics, "importer", "read back", "", err)
	}
	if w != res.Width || h != res.Height {
		return xfer.Wrap(xfer.ErrGraphics, "importer", "read back",
			fmt.Sprintf("texture is %dx%d, expected %dx%d", w, h, res.Width, res.Height), nil)
	}
	res.Pixels = pixels
	sum := pattern.Digest(pixels)
	res.Digest = fmt.Sprintf("%x", sum[:])

	if !im.Config.Transfer.Verify {
		return nil
	}
	res.Mismatch = pattern.Compare(pattern.Gradient(w, h), pixels, w, h)
	res.Verified = res.Mismatch == nil
	if res.Verified && res.Metadata {
		announce, _, _ := wire.Decode(payload)
		if len(announce.Digest) != 0 && !bytes.Equal(announce.Digest, sum[:]) {
			res.Verified = false
			res.Mismatch = &pattern.Mismatch{X: -1, Y: -1, Reason: "digest differs from announced " + announce.DigestHex()}
		}
	}
	return nil
}

// finish acknowledges the transfer and journals it. Both are best effort:
// the exporter tolerates a missing ack.
func (im *Importer) finish(ctx context.Context, logger *slog.Logger, conn *transport.Conn, entry *journal.Entry, ack wire.Ack) {
	if payload, err := wire.EncodeAck(ack); err == nil {
		if err := conn.Send(ctx, payload, nil); err != nil && !errors.Is(err, xfer.ErrHungUp) {
			logger.Debug("acknowledgement not sent", logging.Error(err))
		}
	}
	if err := im.Journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(logger, "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.path permissions"),
			logging.String(logging.FieldImpact, "transfer missing from history"),
		)
	}
}

func writeSnapshot(path string, res *Result) error {
	if res.Pixels == nil {
		return fmt.Errorf("no pixels read back")
	}
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return pattern.WriteSnapshot(w, res.Pixels, res.Width, res.Height)
	})
}
