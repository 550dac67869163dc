package logging

import (
	"context"
	"log/slog"

	"texshare/internal/xfer"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. "handle_sent").
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldTransferID is the correlation identifier shared by both peers.
	FieldTransferID = "transfer_id"
	// FieldRole is the local role, exporter or importer.
	FieldRole = "role"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := xfer.TransferIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTransferID, id))
	}
	if role, ok := xfer.RoleFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRole, role))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
