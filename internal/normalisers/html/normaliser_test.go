package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensions(t *testing.T) {
	n := New()
	assert.Equal(t, "html", n.Format())
	assert.ElementsMatch(t, []string{".html", ".htm", ".xhtml"}, n.Extensions())
}

func TestNormalise_TitleTag(t *testing.T) {
	page := `<html><head><title>Release &amp; Notes</title><style>p{}</style></head>
<body><h1>Ignored</h1><p>Hello <b>world</b>.</p></body></html>`

	note, err := New().Normalise("/pages/release.html", []byte(page))
	require.NoError(t, err)

	assert.Equal(t, "Release & Notes", note.Title)
	assert.Equal(t, "html", note.Format)
	assert.Equal(t, "# Ignored\n\nHello world.", note.Content)
}

func TestNormalise_TitleFromH1(t *testing.T) {
	note, err := New().Normalise("page.html", []byte("<h1>Garden <em>plan</em></h1><p>Tomatoes</p>"))
	require.NoError(t, err)
	assert.Equal(t, "Garden plan", note.Title)
}

func TestNormalise_TitleFromFilename(t *testing.T) {
	note, err := New().Normalise("/x/reading-list.htm", []byte("<p>Dune</p>"))
	require.NoError(t, err)
	assert.Equal(t, "reading list", note.Title)
	assert.Equal(t, "Dune", note.Content)
}

func TestNormalise_HeadingsAndLists(t *testing.T) {
	page := `<body>
<h2>Groceries</h2>
<ul><li>milk</li><li>eggs</li></ul>
<script>alert(1)</script>
<!-- hidden -->
<h3>Later</h3><p>bread<br>butter</p>
</body>`

	note, err := New().Normalise("list.html", []byte(page))
	require.NoError(t, err)

	assert.Equal(t, "## Groceries\n\n- milk\n\n- eggs\n\n### Later\n\nbread\nbutter", note.Content)
	assert.NotContains(t, note.Content, "alert")
	assert.NotContains(t, note.Content, "hidden")
}
