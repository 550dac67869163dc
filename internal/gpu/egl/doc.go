// Package egl is the hardware graphics backend: a surfaceless EGL display
// with a desktop OpenGL context, exporting and importing textures through
// the MESA DMA-BUF extensions.
//
// The driver is compiled only with the egl build tag and cgo on Linux:
//
//	go build -tags egl ./cmd/texshare
//
// Without the tag the package registers nothing and Available is false.
//
// An EGL context is current on exactly one OS thread. The driver starts a
// goroutine locked to its thread and runs every call there, so callers may
// use the driver from any goroutine.
package egl
