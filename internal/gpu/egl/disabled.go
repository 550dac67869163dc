//go:build !(linux && cgo && egl)

package egl

// Available reports whether the EGL backend was compiled in.
const Available = false
