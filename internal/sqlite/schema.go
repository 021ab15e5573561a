// Package sqlite implements the KV primitive on SQLite.
// This file holds the schema DDL.
package sqlite

// Schema DDL for the key-value table.
const (
	createKV = `CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL,
    updated_at TEXT NOT NULL
);`
)

// Connection pragmas applied on Attach.
const (
	pragmaJournalWAL  = `PRAGMA journal_mode = WAL;`
	pragmaBusyTimeout = `PRAGMA busy_timeout = 5000;`
	pragmaSynchronous = `PRAGMA synchronous = NORMAL;`
)

// schemaDDL lists all statements executed on Attach, in order.
var schemaDDL = []string{
	pragmaJournalWAL,
	pragmaBusyTimeout,
	pragmaSynchronous,
	createKV,
}
