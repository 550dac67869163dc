// Package journal records transfer outcomes in a local SQLite database.
//
// Each process appends one entry per transfer it takes part in: the
// exporter when the handle has been sent (and acknowledged, if the peer
// does), the importer once the buffer has been imported and verified. The
// history command reads the newest entries back.
//
// The schema is embedded and versioned. A database created by a different
// schema version is refused rather than migrated; delete the file to start
// over.
package journal
