package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist
	// or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable indicates an embedding or completion call
	// failed or timed out. Callers recover locally.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrQuotaExceeded indicates the provider rejected the call for quota
	// or rate reasons. Triggers a one-time switch to a fallback provider.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrEmbeddingUnavailable indicates embeddings are disabled for the session.
	// Scoring degrades to lexical-only.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrCompletionUnavailable indicates no completion provider is configured.
	ErrCompletionUnavailable = errors.New("completion service unavailable")

	// ErrUnknownJobKind indicates a job kind with no registered handler.
	ErrUnknownJobKind = errors.New("unknown job kind")

	// ErrNoteDeleted indicates the note has been soft-deleted.
	ErrNoteDeleted = errors.New("note deleted")
)

// ItemFailure records a single failed item inside a batch.
type ItemFailure struct {
	// ItemID is the natural identifier of the item (note ID, report ID).
	ItemID string `json:"item_id"`

	// Error is the failure message.
	Error string `json:"error"`
}

// BatchResult summarises a batch operation that continues past
// individual failures.
type BatchResult struct {
	// Processed is the number of items handled successfully.
	Processed int `json:"processed"`

	// Failures lists the items that failed.
	Failures []ItemFailure `json:"failures,omitempty"`
}

// AddFailure records a failed item.
func (r *BatchResult) AddFailure(itemID string, err error) {
	r.Failures = append(r.Failures, ItemFailure{ItemID: itemID, Error: err.Error()})
}

// Partial returns true if some but not all items failed.
func (r BatchResult) Partial() bool {
	return len(r.Failures) > 0 && r.Processed > 0
}

// PartialBatchError describes a batch with per-item failures.
// Job handlers report it inside a successful result rather than failing.
type PartialBatchError struct {
	Result BatchResult
}

// Error implements the error interface.
func (e *PartialBatchError) Error() string {
	ids := make([]string, 0, len(e.Result.Failures))
	for _, f := range e.Result.Failures {
		ids = append(ids, f.ItemID)
	}
	return fmt.Sprintf("%d of %d items failed: %s",
		len(e.Result.Failures), len(e.Result.Failures)+e.Result.Processed, strings.Join(ids, ", "))
}
