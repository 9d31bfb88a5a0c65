// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - NoteStore: Note persistence
//   - ChunkStore: Chunk and embedding persistence, replaced per note as a set
//   - RankingStore: Ranking feedback records, unique per (note, query)
//   - DuplicateStore: Duplicate reports, unique per unordered note pair
//   - HistoryStore: Search history and saved searches
//   - JobStore: Durable background job queue
//   - SchedulerStore: Scheduled task state and history
//   - ConfigStore: Application configuration
//   - PostProcessor: Turns note text into chunks
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, scoring is lexical-only.
//   - CompletionService: Language model completions. Without it, answers are canned.
//   - PromptStore: Customisable prompt templates. Without it, built-in prompts are used.
//   - NormaliserRegistry, FileSource: File import. Without them, notes are only entered by hand.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
