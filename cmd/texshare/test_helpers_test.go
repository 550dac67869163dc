package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"texshare/internal/config"
	"texshare/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", base)
	t.Setenv("TEXSHARE_SOCKET", "")
	t.Setenv("TEXSHARE_BACKEND", "")
	t.Setenv("XDG_RUNTIME_DIR", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
runtime_dir = %q
log_dir = %q

[transport]
socket_path = %q
connect_timeout = %d
ack_timeout = %d

[buffer]
width = %d
height = %d

[transfer]
metadata = %t
count = %d

[gpu]
backend = %q

[journal]
enabled = %t
path = %q

[logging]
level = "warn"
`,
		cfg.Paths.RuntimeDir,
		cfg.Paths.LogDir,
		cfg.Transport.SocketPath,
		cfg.Transport.ConnectTimeout,
		cfg.Transport.AckTimeout,
		cfg.Buffer.Width,
		cfg.Buffer.Height,
		cfg.Transfer.Metadata,
		cfg.Transfer.Count,
		cfg.GPU.Backend,
		cfg.Journal.Enabled,
		cfg.Journal.Path,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
