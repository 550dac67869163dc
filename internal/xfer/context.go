package xfer

import "context"

type contextKey string

const (
	transferIDKey contextKey = "transfer_id"
	roleKey       contextKey = "role"
)

// Roles a process can take in a transfer.
const (
	RoleExporter = "exporter"
	RoleImporter = "importer"
)

// WithTransferID annotates context with the transfer correlation identifier.
func WithTransferID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, transferIDKey, id)
}

// TransferIDFromContext extracts the transfer identifier if present.
func TransferIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(transferIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRole annotates context with the local role (exporter or importer).
func WithRole(ctx context.Context, role string) context.Context {
	if role == "" {
		return ctx
	}
	return context.WithValue(ctx, roleKey, role)
}

// RoleFromContext returns the role if present.
func RoleFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(roleKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
