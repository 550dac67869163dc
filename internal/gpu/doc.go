// Package gpu owns the process-local graphics context used to create, export
// and import buffer-backed textures.
//
// Backends implement Driver and register themselves by name from an init
// function, the way database/sql drivers do. Importing a backend package for
// its side effect makes it available to NewHeadless:
//
//	import _ "texshare/internal/gpu/software"
//
// Every entry point a backend needs is resolved once when the driver opens.
// A missing entry point fails NewHeadless instead of the first call that
// needs it.
package gpu
