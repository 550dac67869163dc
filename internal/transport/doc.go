// Package transport provides the blocking Unix-domain stream channel the two
// peers use to hand over a buffer handle.
//
// A Listener binds a filesystem path, guards it with an advisory lock so two
// exporters cannot share an address, and accepts exactly one peer. A Conn
// sends and receives single messages made of a non-empty payload plus at
// most one descriptor carried as an SCM_RIGHTS record. All operations block;
// context cancellation and deadlines are mapped onto socket deadlines.
//
// Ownership: Send closes the local copy of the handle once the kernel has
// accepted the message. Receive returns a fresh Handle the caller must Close
// or hand to dmabuf.Import.
package transport
