package domain

import (
	"sort"
	"strings"
	"time"
)

// Note is a user-owned note. It is the unit that is scored, merged
// and reported as a duplicate.
type Note struct {
	// ID is the unique identifier for the note.
	ID string `json:"id"`

	// OwnerID identifies the user that owns the note.
	OwnerID string `json:"owner_id"`

	// Title is the human-readable title.
	Title string `json:"title"`

	// Content is the markdown-flavoured body text.
	Content string `json:"content"`

	// Tags is the note's tag set. Unique and unordered;
	// stored lower-cased and sorted.
	Tags []string `json:"tags,omitempty"`

	// CreatedAt is when the note was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the note was last modified.
	UpdatedAt time.Time `json:"updated_at"`

	// Deleted marks a soft-deleted note (e.g. the losing side of a merge).
	Deleted bool `json:"deleted,omitempty"`

	// DeletedAt is when the note was soft-deleted.
	DeletedAt time.Time `json:"deleted_at,omitempty"`
}

// WordCount returns the number of whitespace-separated words in the body.
func (n Note) WordCount() int {
	return len(strings.Fields(n.Content))
}

// HasTag reports whether the note carries the tag (case-insensitive).
func (n Note) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NormalizeTags lower-cases, trims, deduplicates and sorts a tag set.
// Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// UnionTags returns the normalized union of two tag sets.
func UnionTags(a, b []string) []string {
	all := make([]string, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return NormalizeTags(all)
}

// Chunk is a retrievable passage within a note.
// A note's chunks are always replaced as a set.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string `json:"id"`

	// NoteID links to the owning Note.
	NoteID string `json:"note_id"`

	// Position is the ordinal position within the note.
	Position int `json:"position"`

	// Heading is the nearest preceding markdown heading, if any.
	Heading string `json:"heading,omitempty"`

	// Content is the text content of this chunk.
	Content string `json:"content"`

	// Embedding is the vector representation. Empty when unavailable.
	Embedding []float32 `json:"embedding,omitempty"`

	// EmbeddingModel is the model that produced Embedding.
	// Vectors from different models are never compared.
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// HasEmbedding returns true if the chunk carries a non-empty vector.
func (c Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// NoteWithChunks pairs a note with its current chunk set.
type NoteWithChunks struct {
	Note   Note
	Chunks []Chunk
}

// RankedChunk is a chunk scored for a query, ready for context assembly.
type RankedChunk struct {
	// Chunk is the ranked passage.
	Chunk Chunk

	// NoteTitle is the owning note's title, used for citations.
	NoteTitle string

	// Score is the chunk's relevance score.
	Score float64
}

// NoteFilter narrows a note listing.
type NoteFilter struct {
	// OwnerID restricts the listing to one user's notes.
	OwnerID string

	// Tags restricts the listing to notes carrying all of these tags.
	Tags []string

	// IncludeDeleted includes soft-deleted notes.
	IncludeDeleted bool

	// Limit caps the number of notes returned. Zero means no limit.
	Limit int
}

// Matches reports whether a note passes the filter, ignoring Limit.
func (f NoteFilter) Matches(n Note) bool {
	if f.OwnerID != "" && n.OwnerID != f.OwnerID {
		return false
	}
	if n.Deleted && !f.IncludeDeleted {
		return false
	}
	for _, t := range f.Tags {
		if !n.HasTag(t) {
			return false
		}
	}
	return true
}
