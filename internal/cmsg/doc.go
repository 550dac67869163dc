// Package cmsg encodes and decodes the single SCM_RIGHTS control record that
// carries a buffer descriptor across a Unix domain socket.
//
// The record layout (header, platform padding, then the 4-byte descriptor) is
// defined by the kernel ABI. Sizes come from golang.org/x/sys/unix so callers
// never add header and data sizes by hand; RightsSpace and RightsLen are
// computed once at package initialisation.
//
// Decode distinguishes a message that carried no control data at all
// (xfer.ErrNoHandle) from one whose control data is corrupt
// (xfer.ErrMalformed), and never returns a partial descriptor.
package cmsg
