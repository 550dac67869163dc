// Package xfer defines the shared error markers and context helpers used by
// every stage of a buffer transfer.
//
// Key responsibilities:
//   - Sentinel markers (ErrTransport, ErrProtocol, ErrGraphics, ...) plus the
//     Wrap helper, so callers classify failures with errors.Is while the
//     message keeps component and operation detail.
//   - ExitCode, the single place that turns a marker into a process status.
//     Internal packages return errors; only cmd/ decides to exit.
//   - Context helpers that stamp transfer IDs and roles for logging.
package xfer
