package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrProviderUnavailable", ErrProviderUnavailable},
		{"ErrQuotaExceeded", ErrQuotaExceeded},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrCompletionUnavailable", ErrCompletionUnavailable},
		{"ErrUnknownJobKind", ErrUnknownJobKind},
		{"ErrNoteDeleted", ErrNoteDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("embed batch: %w", ErrQuotaExceeded)

	assert.True(t, errors.Is(wrapped, ErrQuotaExceeded))
	assert.False(t, errors.Is(wrapped, ErrProviderUnavailable))
}

func TestBatchResult_AddFailure(t *testing.T) {
	var r BatchResult
	r.Processed = 3
	r.AddFailure("note-1", errors.New("boom"))

	assert.Len(t, r.Failures, 1)
	assert.Equal(t, "note-1", r.Failures[0].ItemID)
	assert.Equal(t, "boom", r.Failures[0].Error)
	assert.True(t, r.Partial())
}

func TestBatchResult_Partial(t *testing.T) {
	assert.False(t, BatchResult{Processed: 2}.Partial())
	assert.False(t, BatchResult{Failures: []ItemFailure{{ItemID: "a"}}}.Partial())
	assert.True(t, BatchResult{Processed: 1, Failures: []ItemFailure{{ItemID: "a"}}}.Partial())
}

func TestPartialBatchError_Error(t *testing.T) {
	err := &PartialBatchError{Result: BatchResult{
		Processed: 2,
		Failures:  []ItemFailure{{ItemID: "a", Error: "x"}, {ItemID: "b", Error: "y"}},
	}}

	assert.Equal(t, "2 of 4 items failed: a, b", err.Error())
}
