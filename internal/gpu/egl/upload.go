package egl

import "fmt"

// checkUpload rejects an upload before any pixel memory is handed to GL.
func checkUpload(width, height, n int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("upload texture: invalid dimensions %dx%d", width, height)
	}
	if n != width*height*4 {
		return fmt.Errorf("upload texture: %d bytes for %dx%d", n, width, height)
	}
	return nil
}
