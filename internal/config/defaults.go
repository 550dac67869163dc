package config

const (
	defaultStateDir       = "~/.local/state/texshare"
	defaultLogDir         = "~/.local/state/texshare/logs"
	defaultSocketName     = "tex_socket"
	defaultBacklog        = 1
	defaultReceiveBuffer  = 512
	minReceiveBuffer      = 256
	defaultConnectTimeout = 10
	defaultAckTimeout     = 10
	defaultWidth          = 256
	defaultHeight         = 256
	defaultFormat         = "AB24"
	defaultModifier       = "linear"
	defaultTransferCount  = 1
	defaultBackend        = "software"
	defaultJournalPath    = "~/.local/state/texshare/journal.db"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	maxDimension          = 16384
	strideAlign           = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RuntimeDir: defaultRuntimeDir(),
			LogDir:     defaultLogDir,
		},
		Transport: Transport{
			SocketPath:     defaultSocketName,
			Backlog:        defaultBacklog,
			ReceiveBuffer:  defaultReceiveBuffer,
			ConnectTimeout: defaultConnectTimeout,
			AckTimeout:     defaultAckTimeout,
		},
		Buffer: Buffer{
			Width:    defaultWidth,
			Height:   defaultHeight,
			Format:   defaultFormat,
			Modifier: defaultModifier,
		},
		Transfer: Transfer{
			Metadata: true,
			Count:    defaultTransferCount,
			Verify:   true,
		},
		GPU: GPU{
			Backend: defaultBackend,
		},
		Journal: Journal{
			Enabled: true,
			Path:    defaultJournalPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
