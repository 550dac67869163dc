package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"texshare/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The runtime directory lives under the system temp root rather than
// t.TempDir so socket paths stay well below the sun_path limit.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	runtimeDir, err := os.MkdirTemp("", "texshare-")
	if err != nil {
		t.Fatalf("create runtime dir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(runtimeDir)
	})

	cfgVal := config.Default()
	cfgVal.Paths.RuntimeDir = runtimeDir
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Journal.Path = filepath.Join(base, "journal.db")
	cfgVal.GPU.Backend = "software"
	cfgVal.GPU.WatchDevices = false
	cfgVal.Transport.ConnectTimeout = 5
	cfgVal.Transport.AckTimeout = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithDimensions overrides the agreed buffer geometry.
func WithDimensions(width, height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Buffer.Width = width
		b.cfg.Buffer.Height = height
	}
}

// WithBareMode disables the metadata record so both peers rely on [buffer].
func WithBareMode() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.Metadata = false
	}
}

// WithTransferCount sets how many transfers the exporter serves.
func WithTransferCount(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transfer.Count = n
	}
}

// WithoutJournal disables the transfer history database.
func WithoutJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
