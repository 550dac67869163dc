// Package session runs the two sides of a buffer transfer.
//
// The Exporter renders the test gradient once, then for each transfer
// exports a descriptor, listens on the configured socket, accepts a single
// importer, sends the payload with the handle attached and waits briefly for
// an acknowledgement. The Importer connects, receives the handle, imports it
// into its own graphics context, reads the pixels back, checks them and
// acknowledges.
//
// Both sides stamp their context with a transfer ID and role so every log
// line and journal entry of one transfer can be correlated across the two
// processes.
package session
