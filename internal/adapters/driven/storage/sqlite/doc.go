// Package sqlite provides a unified SQLite-based implementation of the
// storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - BlobStore: index files and other opaque blobs
//   - CheckpointStore: append-only execution checkpoints
//   - ContentStore: ingested content, reopened by resumed executions
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a NNN_name.up.sql file.
//
// # Data Location
//
// By default, the database is stored at ~/.boltindex/data/boltindex.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
