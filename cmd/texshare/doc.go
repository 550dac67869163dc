// Package main hosts the texshare CLI entrypoint and command graph.
//
// The Cobra command tree exposes the two halves of a buffer transfer
// (serve and fetch) plus operator tooling: doctor runs the preflight checks,
// history reads the transfer journal, abi prints the control-message layout
// and config scaffolds or validates the configuration file. Configuration is
// resolved once per invocation and the persistent --socket and --backend
// flags override the file.
package main
