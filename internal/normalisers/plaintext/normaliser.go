// Package plaintext imports plain text files as notes.
package plaintext

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/textutil"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text files.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Format returns "plaintext".
func (n *Normaliser) Format() string {
	return "plaintext"
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".txt", ".text", ".org", ".rst"}
}

// Normalise uses the file content as the note body and the file name as
// its title.
func (n *Normaliser) Normalise(path string, data []byte) (*domain.ImportedNote, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s: not valid UTF-8 text: %w", path, domain.ErrInvalidInput)
	}
	body := string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	body = strings.ReplaceAll(body, "\r\n", "\n")

	return &domain.ImportedNote{
		Path:    path,
		Format:  n.Format(),
		Title:   textutil.TitleFromPath(path),
		Content: strings.TrimSpace(body),
	}, nil
}
