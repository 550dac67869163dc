// Package dmabuf turns a texture into a shareable buffer descriptor and
// rebuilds a texture from one.
//
// A Descriptor carries the owned handle plus the layout the importing side
// needs: DRM fourcc, format modifier, row stride and plane offset. Only
// single-plane buffers are supported; Export refuses anything else before a
// descriptor is materialized.
package dmabuf
