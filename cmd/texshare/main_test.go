package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"texshare/internal/session"
	"texshare/internal/testsupport"
	"texshare/internal/xfer"
)

func TestABICommandSkipsConfig(t *testing.T) {
	out, _, err := runCLI(t, []string{"abi"}, filepath.Join(t.TempDir(), "missing", "config.toml"))
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	requireContains(t, out, "rights space")
	requireContains(t, out, "data offset")
	requireContains(t, out, "software")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.SocketPath())

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, target); err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
}

func TestInvalidConfigMapsToConfigExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[buffer]\nwidth = -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, []string{"history"}, path)
	if err == nil {
		t.Fatal("expected invalid config to fail")
	}
	if code := xfer.ExitCode(err); code != xfer.ExitConfig {
		t.Fatalf("exit code %d, want %d (%v)", code, xfer.ExitConfig, err)
	}
}

func TestServeFetchHistory(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithTransferCount(1), testsupport.WithDimensions(64, 64))

	serveErr := make(chan error, 1)
	go func() {
		_, _, err := runCLI(t, []string{"serve"}, env.configPath)
		serveErr <- err
	}()

	snapshot := filepath.Join(env.baseDir, "fetched.bmp")
	out, _, err := runCLI(t, []string{"fetch", "--snapshot", snapshot}, env.configPath)
	if err != nil {
		testsupport.SkipIfDenied(t, "transfer", err)
		t.Fatalf("fetch: %v", err)
	}
	requireContains(t, out, "Size:      64x64")
	requireContains(t, out, "(announce)")
	requireContains(t, out, "Verified:  yes")
	if _, err := os.Stat(snapshot); err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not exit after its single transfer")
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "export")
	requireContains(t, out, "import")
	if strings.Contains(out, "No transfers recorded") {
		t.Fatalf("history is empty: %s", out)
	}
}

func TestFetchWithoutExporterFailsWithTransportCode(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Transport.ConnectTimeout = 1
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"fetch"}, env.configPath)
	if err == nil {
		t.Fatal("expected fetch to fail with no exporter")
	}
	if errors.Is(err, session.ErrVerification) {
		t.Fatalf("unexpected verification error: %v", err)
	}
	if code := xfer.ExitCode(err); code != xfer.ExitTransport {
		t.Fatalf("exit code %d, want %d (%v)", code, xfer.ExitTransport, err)
	}
}

func TestHistoryEmptyJournal(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No transfers recorded")
}

func TestHistoryRequiresJournal(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutJournal())
	_, _, err := runCLI(t, []string{"history"}, env.configPath)
	if !errors.Is(err, xfer.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDoctorListsChecks(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	requireContains(t, out, "Socket")
	requireContains(t, out, "Graphics backend")
	requireContains(t, out, "Journal directory")
	if err != nil && !strings.Contains(err.Error(), "checks failed") {
		t.Fatalf("doctor: %v", err)
	}
}

func TestBackendFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"--backend", "nonexistent", "fetch"}, env.configPath)
	if !errors.Is(err, xfer.ErrGraphics) {
		t.Fatalf("expected graphics error for unknown backend, got %v", err)
	}
}
