package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"texshare/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RuntimeDir string `toml:"runtime_dir"`
	LogDir     string `toml:"log_dir"`
}

// Transport contains local socket settings.
type Transport struct {
	// SocketPath names the listening endpoint. Relative paths resolve under
	// paths.runtime_dir.
	SocketPath string `toml:"socket_path"`
	// Backlog bounds pending connections on the listening socket.
	Backlog int `toml:"backlog"`
	// ReceiveBuffer is the payload capacity, in bytes, of one receive.
	ReceiveBuffer int `toml:"receive_buffer"`
	// ConnectTimeout (seconds) bounds how long the importer waits for the
	// exporter's socket to accept.
	ConnectTimeout int `toml:"connect_timeout"`
	// AcceptTimeout (seconds) bounds each accept. 0 waits until cancelled.
	AcceptTimeout int `toml:"accept_timeout"`
	// AckTimeout (seconds) bounds how long the exporter waits for the
	// importer's acknowledgement.
	AckTimeout int `toml:"ack_timeout"`
}

// Buffer describes the shared buffer geometry both peers agree on.
type Buffer struct {
	Width    int    `toml:"width"`
	Height   int    `toml:"height"`
	Format   string `toml:"format"`
	Modifier string `toml:"modifier"`
	// Stride is the row pitch assumed when no metadata record is sent.
	// 0 uses width*4 rounded up to 64 bytes.
	Stride int `toml:"stride"`
}

// Transfer contains protocol behaviour.
type Transfer struct {
	// Metadata sends a metadata record ahead of the handle. When false the
	// payload is a bare liveness byte and both sides rely on [buffer].
	Metadata bool `toml:"metadata"`
	// Count is the number of transfers served before exiting. 0 serves until
	// interrupted.
	Count int `toml:"count"`
	// Verify reads the imported texture back and checks its content.
	Verify bool `toml:"verify"`
}

// GPU selects the graphics backend.
type GPU struct {
	Backend      string `toml:"backend"`
	RenderNode   string `toml:"render_node"`
	WatchDevices bool   `toml:"watch_devices"`
}

// Journal configures the transfer history database.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for texshare.
//
// Configuration sections by subsystem:
//   - Paths: runtime and log directories
//   - Transport: socket location, backlog and timeouts
//   - Buffer: dimensions, format and modifier agreed out of band
//   - Transfer: metadata record, transfer count, verification
//   - GPU: backend selection and device watching
//   - Journal: SQLite transfer history
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Transport Transport `toml:"transport"`
	Buffer    Buffer    `toml:"buffer"`
	Transfer  Transfer  `toml:"transfer"`
	GPU       GPU       `toml:"gpu"`
	Journal   Journal   `toml:"journal"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/texshare/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("texshare.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the runtime, log and journal directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.RuntimeDir, c.Paths.LogDir, filepath.Dir(c.SocketPath())}
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the absolute socket location.
func (c *Config) SocketPath() string {
	path := c.Transport.SocketPath
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Paths.RuntimeDir, path)
}

// BufferStride returns the configured row pitch, deriving the default from
// the width when unset.
func (c *Config) BufferStride() int {
	if c.Buffer.Stride > 0 {
		return c.Buffer.Stride
	}
	row := c.Buffer.Width * 4
	return (row + strideAlign - 1) / strideAlign * strideAlign
}

// ConnectTimeout returns the importer's connect budget.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Transport.ConnectTimeout) * time.Second
}

// AcceptTimeout returns the per-accept budget. Zero means no deadline.
func (c *Config) AcceptTimeout() time.Duration {
	return time.Duration(c.Transport.AcceptTimeout) * time.Second
}

// AckTimeout returns how long the exporter waits for an acknowledgement.
func (c *Config) AckTimeout() time.Duration {
	return time.Duration(c.Transport.AckTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultRuntimeDir() string {
	if base, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "texshare")
	}
	return defaultStateDir
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
