// Package sqlite provides a SQLite implementation of the recall store ports.
//
// It uses modernc.org/sqlite, a pure Go SQLite driver that needs no CGO.
// One database connection backs several store interfaces:
//
//   - NoteStore and ChunkStore: notes, chunks and their embeddings
//   - RankingStore: ranking feedback per (note, normalized query)
//   - DuplicateStore: duplicate reports, unique per unordered note pair
//   - HistoryStore: search history and saved searches
//   - JobStore: the durable background job queue
//   - SchedulerStore: scheduled task state and run history
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory. Applied versions are recorded in schema_migrations.
// Timestamps are stored as Unix nanoseconds so range scans and ordering
// compare integers.
//
// # Data Location
//
// By default, the database is stored at ~/.recall/data/recall.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. The database runs in WAL mode
// with a busy timeout; chunk replacement and job claiming are atomic.
package sqlite
