package domain

// Citation identifies the source of one block in an assembled context.
type Citation struct {
	// NoteID is the cited note.
	NoteID string `json:"note_id"`

	// ChunkID is the cited chunk.
	ChunkID string `json:"chunk_id"`

	// Title is the note title.
	Title string `json:"title"`

	// Heading is the chunk heading, if any.
	Heading string `json:"heading,omitempty"`
}

// Label renders the citation as "Title" or "Title > Heading".
func (c Citation) Label() string {
	if c.Heading == "" {
		return c.Title
	}
	return c.Title + " > " + c.Heading
}

// AssembledContext is a token-bounded prompt context with citations.
// An empty context means nothing relevant was found or nothing fitted the
// budget; the two cases are not distinguished.
type AssembledContext struct {
	// Text is the concatenated, source-tagged chunk blocks.
	Text string `json:"text"`

	// Citations lists the included chunks in inclusion order.
	Citations []Citation `json:"citations,omitempty"`

	// Tokens is the charged token total, including separator overhead.
	Tokens int `json:"tokens"`
}

// IsEmpty returns true if no chunk was included.
func (c AssembledContext) IsEmpty() bool {
	return len(c.Citations) == 0
}

// AskOptions configures a question-answering request.
type AskOptions struct {
	// OwnerID restricts retrieval to one user's notes.
	OwnerID string

	// ContextBudget is the token budget for the assembled context.
	// Zero uses the configured default.
	ContextBudget int

	// MaxTokens is the completion token ceiling. Zero uses the default.
	MaxTokens int

	// TopNotes is how many ranked notes to draw chunks from.
	TopNotes int
}

// AnswerSource records how an answer was produced.
type AnswerSource string

// Answer sources.
const (
	// AnswerFromPrimary is a completion from the primary provider.
	AnswerFromPrimary AnswerSource = "primary"

	// AnswerFromFallback is a completion from the fallback provider.
	AnswerFromFallback AnswerSource = "fallback"

	// AnswerCanned is a fixed response (no context or provider down).
	AnswerCanned AnswerSource = "canned"

	// AnswerDegraded is the quota-exhausted message.
	AnswerDegraded AnswerSource = "degraded"
)

// Answer is a grounded completion plus its citations.
type Answer struct {
	Text      string           `json:"text"`
	Citations []Citation       `json:"citations,omitempty"`
	Source    AnswerSource     `json:"source"`
	Context   AssembledContext `json:"-"`
}

// AnswerEvent is one increment of a streamed answer.
// The final event has Done set; Err is set only on a terminal failure.
type AnswerEvent struct {
	Delta     string
	Citations []Citation
	Source    AnswerSource
	Done      bool
	Err       error
}

// CompletionRequest is everything the core hands a completion provider.
type CompletionRequest struct {
	// System is an optional system instruction.
	System string

	// Prompt is the full user prompt including the assembled context.
	Prompt string

	// MaxTokens is the completion token ceiling.
	MaxTokens int
}
