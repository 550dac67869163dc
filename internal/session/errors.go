package session

import (
	"errors"
	"fmt"

	"texshare/internal/xfer"
)

var (
	// ErrDeviceRemoved stops an exporter whose DRM device went away.
	ErrDeviceRemoved = fmt.Errorf("%w: drm device removed", xfer.ErrGraphics)
	// ErrVerification reports imported pixels that differ from the exporter's.
	ErrVerification = errors.New("imported pixels differ from the exported image")
)
