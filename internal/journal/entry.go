package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Role is the side of the transfer that wrote the entry.
type Role string

const (
	RoleExport Role = "export"
	RoleImport Role = "import"
)

// Status is the outcome of a transfer.
type Status string

const (
	// StatusSent means the exporter handed the descriptor to the kernel.
	StatusSent Status = "sent"
	// StatusImported means the importer rebuilt a texture from the buffer.
	StatusImported Status = "imported"
	// StatusFailed means the transfer did not complete; Error says why.
	StatusFailed Status = "failed"
)

// Entry is one recorded transfer.
type Entry struct {
	ID         int64
	TransferID string
	Role       Role
	PeerPID    int32
	PeerUID    uint32
	Width      int
	Height     int
	Format     string
	Modifier   string
	Stride     uint32
	Offset     uint32
	Digest     string
	Status     Status
	Verified   bool
	Error      string
	CreatedAt  time.Time
}

// Record appends e and fills its ID and CreatedAt. A nil Store discards the
// entry, which is how a disabled journal behaves.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if s == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `INSERT INTO transfers
			(transfer_id, role, peer_pid, peer_uid, width, height, format, modifier, stride, plane_offset, digest, status, verified, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.TransferID, string(e.Role), e.PeerPID, e.PeerUID, e.Width, e.Height, e.Format, e.Modifier,
			e.Stride, e.Offset, e.Digest, string(e.Status), boolToInt(e.Verified), e.Error,
			e.CreatedAt.UTC().Format(time.RFC3339Nano))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read transfer id: %w", err)
	}
	e.ID = id
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, transfer_id, role, peer_pid, peer_uid, width, height, format, modifier, stride, plane_offset, digest, status, verified, error, created_at
		FROM transfers ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			role     string
			status   string
			verified int
			created  string
		)
		if err := rows.Scan(&e.ID, &e.TransferID, &role, &e.PeerPID, &e.PeerUID, &e.Width, &e.Height,
			&e.Format, &e.Modifier, &e.Stride, &e.Offset, &e.Digest, &status, &verified, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		e.Role = Role(role)
		e.Status = Status(status)
		e.Verified = verified != 0
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return entries, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
