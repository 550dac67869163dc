package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"texshare/internal/config"
	"texshare/internal/logging"
	"texshare/internal/xfer"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleOutputUsesComponentPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.NewComponentLogger(logger, "transport").Info("accepted peer", logging.Int("pid", 42))
	logger.Debug("hidden")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "INFO transport: accepted peer pid=42") {
		t.Fatalf("unexpected console line: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record leaked at info level: %q", out)
	}
	if strings.Contains(out, "component=") {
		t.Fatalf("component should be the prefix, got %q", out)
	}
}

func TestJSONOutputCarriesContextFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := xfer.WithTransferID(context.Background(), "abc")
	ctx = xfer.WithRole(ctx, xfer.RoleImporter)
	logging.WithContext(ctx, logger).Info("imported", logging.Error(errors.New("boom")))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode json line %q: %v", data, err)
	}
	if entry[logging.FieldTransferID] != "abc" {
		t.Fatalf("transfer_id = %v", entry[logging.FieldTransferID])
	}
	if entry[logging.FieldRole] != xfer.RoleImporter {
		t.Fatalf("role = %v", entry[logging.FieldRole])
	}
	if entry["error"] != "boom" {
		t.Fatalf("error = %v", entry["error"])
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v", entry["level"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts key")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "ack missing", "ack_timeout", logging.String(logging.FieldImpact, "exporter cannot confirm import"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry[logging.FieldEventType] != "ack_timeout" {
		t.Fatalf("event_type = %v", entry[logging.FieldEventType])
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
	if entry[logging.FieldImpact] != "exporter cannot confirm import" {
		t.Fatalf("impact overwritten: %v", entry[logging.FieldImpact])
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"
	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("hello")
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "texshare.log")); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestHexPadsToSixteenDigits(t *testing.T) {
	attr := logging.Hex("modifier", 0x00ffffffffffffff)
	if got := attr.Value.String(); got != "0x00ffffffffffffff" {
		t.Fatalf("Hex = %q", got)
	}
	if got := logging.Hex("modifier", 0).Value.String(); got != "0x0000000000000000" {
		t.Fatalf("Hex(0) = %q", got)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
	logging.WarnWithContext(nil, "ignored", "noop")
}
