// Package markdown imports Markdown files as notes. The body is kept as
// Markdown so the chunker can split on headings.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/textutil"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// frontMatterDelim opens and closes a TOML front matter block.
const frontMatterDelim = "+++"

// Normaliser handles Markdown files.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Format returns "markdown".
func (n *Normaliser) Format() string {
	return "markdown"
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".md", ".markdown", ".mdown"}
}

// frontMatter is the optional TOML header of a note file.
type frontMatter struct {
	Title string   `toml:"title"`
	Tags  []string `toml:"tags"`
}

// Normalise extracts a note from Markdown content. The title comes from
// front matter, then the first H1, then the file name.
func (n *Normaliser) Normalise(path string, data []byte) (*domain.ImportedNote, error) {
	body := string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	body = strings.ReplaceAll(body, "\r\n", "\n")

	meta, body, err := splitFrontMatter(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = extractTitle(body)
	}
	if title == "" {
		title = textutil.TitleFromPath(path)
	}

	return &domain.ImportedNote{
		Path:    path,
		Format:  n.Format(),
		Title:   title,
		Content: strings.TrimSpace(body),
		Tags:    meta.Tags,
	}, nil
}

// splitFrontMatter separates a leading +++ block from the body.
func splitFrontMatter(content string) (frontMatter, string, error) {
	var meta frontMatter
	if !strings.HasPrefix(content, frontMatterDelim+"\n") {
		return meta, content, nil
	}
	rest := content[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return meta, content, nil
	}
	if err := toml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return meta, content, fmt.Errorf("parse front matter: %w", err)
	}
	body := rest[end+len(frontMatterDelim)+1:]
	return meta, strings.TrimPrefix(body, "\n"), nil
}

// extractTitle returns the text of the first H1 outside code fences.
func extractTitle(content string) string {
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}
