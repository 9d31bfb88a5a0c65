// Package domain defines the core business entities for the recall engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Note: A user-owned note with title, body and tags
//   - Chunk: A retrievable passage derived from a note's body
//   - SearchResult / RankingRecord: Query-time results and persisted feedback
//   - DuplicateReport: A detected near-duplicate note pair
//   - Job: A unit of background work in the durable queue
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
