// Package config loads, normalizes, and validates texshare configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// TEXSHARE_SOCKET and TEXSHARE_BACKEND. The Config type centralizes every knob
// the exporter, importer and CLI need: socket location, buffer geometry the
// peers agree on out of band, graphics backend selection and journal storage.
//
// Always obtain settings through this package so downstream code receives
// resolved socket paths, canonical format codes, and clear validation errors.
package config
