// Package sqlite persists scheduler state and local memories in one
// SQLite file, by default ~/.memquery/data/memquery.db.
//
// The driver is modernc.org/sqlite, so no cgo is needed. The database is
// opened in WAL mode with a busy timeout, which lets HTTP handlers read
// while the scheduler writes.
//
// Schema changes live in migrations/ as NNN_name.up.sql and
// NNN_name.down.sql pairs. NewStore applies pending up scripts; Rollback
// runs down scripts to reach an earlier version. Applied versions are
// recorded in schema_migrations.
package sqlite
