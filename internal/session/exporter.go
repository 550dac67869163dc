package session

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"texshare/internal/config"
	"texshare/internal/dmabuf"
	"texshare/internal/drmwatch"
	"texshare/internal/gpu"
	"texshare/internal/journal"
	"texshare/internal/logging"
	"texshare/internal/pattern"
	"texshare/internal/transport"
	"texshare/internal/wire"
	"texshare/internal/xfer"
)

// DeviceWatch reports removed DRM devices. *drmwatch.Watcher implements it.
type DeviceWatch interface {
	Removed() <-chan string
}

var _ DeviceWatch = (*drmwatch.Watcher)(nil)

// Exporter serves the gradient texture to importers, one at a time.
type Exporter struct {
	Config *config.Config
	GPU    *gpu.Context
	Logger *slog.Logger
	// Journal records outcomes. nil disables recording.
	Journal *journal.Store
	// Watch stops serving when the DRM device disappears. nil disables it.
	Watch DeviceWatch
	// Ready, when set, receives the socket path each time the exporter
	// starts listening.
	Ready func(socketPath string)
}

// Serve runs transfer.count transfers (0 means until ctx ends). It returns
// nil when ctx is cancelled between or during transfers and
// ErrDeviceRemoved when the watcher reports the device gone.
func (e *Exporter) Serve(ctx context.Context) error {
	if e.Config == nil || e.GPU == nil {
		return xfer.Wrap(xfer.ErrConfiguration, "exporter", "serve", "config and graphics context are required", nil)
	}
	logger := logging.NewComponentLogger(e.Logger, "exporter")
	cfg := e.Config
	width, height := cfg.Buffer.Width, cfg.Buffer.Height

	pixels := pattern.Gradient(width, height)
	driver := e.GPU.Driver()
	tex, err := driver.CreateTexture(width, height, pixels)
	if err != nil {
		return xfer.Wrap(xfer.ErrGraphics, "exporter", "serve", "create gradient texture", err)
	}
	defer func() {
		if err := driver.DeleteTexture(tex); err != nil {
			logger.Debug("delete texture failed", logging.Error(err))
		}
	}()
	digest := pattern.Digest(pixels)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	var removed <-chan string
	if e.Watch != nil {
		removed = e.Watch.Removed()
	}
	if removed != nil {
		go func() {
			select {
			case node := <-removed:
				cancel(xfer.Wrap(ErrDeviceRemoved, "exporter", "serve", node, nil))
			case <-ctx.Done():
			}
		}()
	}

	for n := 0; cfg.Transfer.Count == 0 || n < cfg.Transfer.Count; n++ {
		if err := e.serveOne(ctx, logger, tex, width, height, digest[:]); err != nil {
			if ctx.Err() == nil {
				return err
			}
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, ErrDeviceRemoved) {
		return cause
	}
	logger.Info("exporter stopped", logging.String(logging.FieldEventType, "exporter_stopped"))
	return nil
}

func (e *Exporter) serveOne(ctx context.Context, base *slog.Logger, tex gpu.Texture, width, height int, digest []byte) error {
	cfg := e.Config
	transferID := uuid.NewString()
	ctx = xfer.WithTransferID(ctx, transferID)
	ctx = xfer.WithRole(ctx, xfer.RoleExporter)
	logger := logging.WithContext(ctx, base)

	desc, err := dmabuf.Export(ctx, e.GPU, tex)
	if err != nil {
		return err
	}
	defer desc.Close()

	payload := []byte(wire.Liveness)
	if cfg.Transfer.Metadata {
		payload, err = wire.Encode(wire.NewAnnounce(transferID, width, height, desc, digest))
		if err != nil {
			return err
		}
	}

	socketPath := cfg.SocketPath()
	ln, err := transport.Listen(socketPath,
		transport.WithBacklog(cfg.Transport.Backlog),
		transport.WithLogger(e.Logger),
	)
	if err != nil {
		return err
	}
	defer ln.Close()

	logger.Info("waiting for importer",
		logging.String(logging.FieldEventType, "exporter_listening"),
		logging.String("socket", socketPath),
		logging.String("descriptor", desc.String()),
	)
	if e.Ready != nil {
		e.Ready(socketPath)
	}

	acceptCtx := ctx
	if timeout := cfg.AcceptTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		acceptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := ln.Accept(acceptCtx)
	if err != nil {
		return err
	}
	defer conn.Close()

	peer := conn.Peer()
	entry := &journal.Entry{
		TransferID: transferID,
		Role:       journal.RoleExport,
		PeerPID:    peer.PID,
		PeerUID:    peer.UID,
		Width:      width,
		Height:     height,
		Format:     desc.Format.String(),
		Modifier:   desc.Modifier.String(),
		Stride:     desc.Stride,
		Offset:     desc.Offset,
		Digest:     hex.EncodeToString(digest),
	}

	if err := conn.Send(ctx, payload, desc.Handle); err != nil {
		entry.Status = journal.StatusFailed
		entry.Error = err.Error()
		e.record(ctx, logger, entry)
		return err
	}
	entry.Status = journal.StatusSent
	logger.Info("handle sent",
		logging.String(logging.FieldEventType, "handle_sent"),
		logging.Int("peer_pid", int(peer.PID)),
		logging.Bool("metadata", cfg.Transfer.Metadata),
	)

	e.awaitAck(ctx, logger, conn, entry)
	e.record(ctx, logger, entry)
	return nil
}

// awaitAck waits for the importer's acknowledgement. A missing or late ack
// does not fail the transfer: the handle has already been delivered.
func (e *Exporter) awaitAck(ctx context.Context, logger *slog.Logger, conn *transport.Conn, entry *journal.Entry) {
	ackCtx := ctx
	if timeout := e.Config.AckTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ackCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	msg, err := conn.Receive(ackCtx, e.Config.Transport.ReceiveBuffer)
	if err != nil {
		if errors.Is(err, xfer.ErrHungUp) {
			logger.Info("importer closed without acknowledgement",
				logging.String(logging.FieldEventType, "ack_missing"),
			)
			return
		}
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(logger, "no acknowledgement from importer", "ack_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the importer logs for this transfer_id"),
			logging.String(logging.FieldImpact, "import outcome unknown to the exporter"),
		)
		return
	}
	if msg.Handle != nil {
		_ = msg.Handle.Close()
	}

	ack, err := wire.DecodeAck(msg.Payload)
	if err != nil {
		logging.WarnWithContext(logger, "unreadable acknowledgement", "ack_malformed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "peer may run an incompatible texshare version"),
			logging.String(logging.FieldImpact, "import outcome unknown to the exporter"),
		)
		return
	}
	entry.Verified = ack.Verified
	if !ack.Verified && ack.Detail != "" {
		entry.Error = ack.Detail
		logging.WarnWithContext(logger, "importer reported a mismatch", "ack_unverified",
			logging.String("detail", ack.Detail),
			logging.String(logging.FieldErrorHint, "compare format and modifier support on both GPUs"),
			logging.String(logging.FieldImpact, "importer sees different pixels"),
		)
		return
	}
	logger.Info("importer acknowledged",
		logging.String(logging.FieldEventType, "ack_received"),
		logging.Bool("verified", ack.Verified),
	)
}

func (e *Exporter) record(ctx context.Context, logger *slog.Logger, entry *journal.Entry) {
	if err := e.Journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(logger, "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.path permissions"),
			logging.String(logging.FieldImpact, "transfer missing from history"),
		)
	}
}
