// Package logging assembles structured slog loggers and formatting helpers used
// across texshare.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so transfer code automatically tags log
// lines with the transfer ID and the local role. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
//
// Warnings follow one shape: cause (message and error), event_type,
// error_hint and impact. Use WarnWithContext to get the defaults injected.
package logging
