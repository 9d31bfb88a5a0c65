// Package memory provides in-memory implementations of the driven store
// ports. They back service tests and ephemeral runs (--memory) and follow
// the same contracts as the SQLite adapters.
package memory
