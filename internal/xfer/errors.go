package xfer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransport         = errors.New("transport error")
	ErrProtocol          = errors.New("protocol error")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrGraphics          = errors.New("graphics error")
	ErrConfiguration     = errors.New("configuration error")
)

// Refinements of the markers above. errors.Is matches both the refinement and
// its parent, e.g. errors.Is(ErrHungUp, ErrProtocol) is true.
var (
	ErrConnection = fmt.Errorf("%w: connection failed", ErrTransport)
	ErrHungUp     = fmt.Errorf("%w: peer hung up", ErrProtocol)
	ErrMalformed  = fmt.Errorf("%w: malformed message", ErrProtocol)
	ErrNoHandle   = fmt.Errorf("%w: message carried no handle", ErrProtocol)
	ErrImport     = fmt.Errorf("%w: import failed", ErrGraphics)
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Exit codes returned by the CLI.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitTransport   = 3
	ExitProtocol    = 4
	ExitUnsupported = 5
	ExitGraphics    = 6
)

// ExitCode maps an error to the process exit status the CLI should use.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConfiguration):
		return ExitConfig
	case errors.Is(err, ErrTransport):
		return ExitTransport
	case errors.Is(err, ErrProtocol):
		return ExitProtocol
	case errors.Is(err, ErrUnsupportedFormat):
		return ExitUnsupported
	case errors.Is(err, ErrGraphics):
		return ExitGraphics
	default:
		return ExitFailure
	}
}

// Hint returns a short operator-facing suggestion for the error class.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrConnection):
		return "start the exporter with `texshare serve` or check the socket path"
	case errors.Is(err, ErrHungUp):
		return "the peer closed the connection early; check its logs"
	case errors.Is(err, ErrMalformed):
		return "peer and local build disagree on the message layout"
	case errors.Is(err, ErrUnsupportedFormat):
		return "only single-plane buffers can be shared"
	case errors.Is(err, ErrImport):
		return "the importing GPU does not accept this format or modifier"
	case errors.Is(err, ErrGraphics):
		return "run `texshare doctor` to check the graphics backend"
	case errors.Is(err, ErrTransport):
		return "check socket permissions and that only one exporter uses the path"
	default:
		return "check logs for details"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "transfer failure"
	}
	return strings.Join(parts, ": ")
}
