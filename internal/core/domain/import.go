package domain

// ImportedNote is a note extracted from a file on disk.
type ImportedNote struct {
	// Path is the file the note was read from.
	Path string

	// Format names the normaliser that produced the note (e.g. "markdown").
	Format string

	Title   string
	Content string
	Tags    []string
}

// FileChangeType is the kind of change a watched file went through.
type FileChangeType string

const (
	FileWritten FileChangeType = "written"
	FileRemoved FileChangeType = "removed"
)

// FileChange is a change reported by a watched directory.
type FileChange struct {
	Path string
	Type FileChangeType
}

// ImportAction is what an import did with one file.
type ImportAction string

const (
	ImportCreated   ImportAction = "created"
	ImportUpdated   ImportAction = "updated"
	ImportUnchanged ImportAction = "unchanged"
	ImportDeleted   ImportAction = "deleted"
	ImportSkipped   ImportAction = "skipped"
	ImportFailed    ImportAction = "failed"
)

// ImportResult reports the outcome of importing one file.
type ImportResult struct {
	Path   string       `json:"path"`
	NoteID string       `json:"note_id,omitempty"`
	Title  string       `json:"title,omitempty"`
	Action ImportAction `json:"action"`
	Error  string       `json:"error,omitempty"`
}

// ImportSummary counts import results by action.
type ImportSummary map[ImportAction]int

// Summarize counts results by action.
func Summarize(results []ImportResult) ImportSummary {
	s := make(ImportSummary)
	for _, r := range results {
		s[r.Action]++
	}
	return s
}
