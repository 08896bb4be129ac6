package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	assert.Contains(t, mimeTypes, "text/markdown")
	assert.Contains(t, mimeTypes, "text/x-markdown")
	assert.Len(t, mimeTypes, 2)
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	upload := &domain.Upload{
		Name:     "brief.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Hello World\n\nThis is a **bold** and *italic* [link](https://example.com) `code`."),
	}

	result, err := New().Normalise(context.Background(), upload)
	require.NoError(t, err)

	assert.Equal(t, "# Hello World\n\nThis is a bold and italic link code.", result.Text)
	assert.Equal(t, "Hello World", result.Title)
	assert.Equal(t, []int{0}, result.PageBoundaries)
	assert.Equal(t, "text/markdown", result.MIMEType)
}

func TestNormalise_FrontMatterTitle(t *testing.T) {
	upload := &domain.Upload{
		Name:    "brief.md",
		Content: []byte("---\ntitle: Hackathon Brief\nauthor: ops\n---\n# PS 1\nBuild a parser."),
	}

	result, err := New().Normalise(context.Background(), upload)
	require.NoError(t, err)

	assert.Equal(t, "Hackathon Brief", result.Title)
	assert.Equal(t, "# PS 1\nBuild a parser.", result.Text)
}

func TestNormalise_InvalidUTF8(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.Upload{Name: "x.md", Content: []byte{0xc3, 0x28}})
	assert.ErrorIs(t, err, domain.ErrCorruptFile)
}

func TestNormalise_NilUpload(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "setext headings",
			input: "Overview\n========\nBody text\n\nDetails\n-------\nMore",
			want:  "# Overview\nBody text\n\n## Details\nMore",
		},
		{
			name:  "atx closing hashes",
			input: "## Problem Statement 2 ##\nText",
			want:  "## Problem Statement 2\nText",
		},
		{
			name:  "heading gets its own paragraph",
			input: "Intro line\n## Next\nBody",
			want:  "Intro line\n\n## Next\nBody",
		},
		{
			name:  "code blocks keep content",
			input: "Intro\n```python\n# comment\nprint(1)\n```\nAfter",
			want:  "Intro\ncomment\nprint(1)\nAfter",
		},
		{
			name:  "lists and quotes",
			input: "- one\n* two\n+ [x] three\n1. first\n> quoted",
			want:  "one\ntwo\nthree\n1. first\nquoted",
		},
		{
			name:  "tables",
			input: "| a | b |\n|---|:-:|\n| 1 | 2 |",
			want:  "a | b\n1 | 2",
		},
		{
			name:  "images and references",
			input: "See ![diagram](d.png) and [docs][ref].\n\n[ref]: https://example.com",
			want:  "See diagram and docs.",
		},
		{
			name:  "comments and rules",
			input: "Top<!-- hidden -->\n\n***\n\nBottom",
			want:  "Top\n\nBottom",
		},
		{
			name:  "underscores inside words survive",
			input: "use snake_case_name and 2 * 3 * 4",
			want:  "use snake_case_name and 2 * 3 * 4",
		},
		{
			name:  "backslash escapes",
			input: `1\. not a list \*literal\* \_x\_`,
			want:  "1. not a list *literal* _x_",
		},
		{
			name:  "strikethrough and autolinks",
			input: "~~old~~ new <https://example.com>",
			want:  "old new https://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strip(tt.input))
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Main", Title("## Sub\n# Main\n"))
	assert.Equal(t, "Sub", Title("text\n## Sub\n### Deeper"))
	assert.Empty(t, Title("no headings here"))
}

func TestSplitFrontMatter_Malformed(t *testing.T) {
	content := "---\ntitle: [unclosed\n---\nBody"
	meta, body := splitFrontMatter(content)
	assert.Empty(t, meta.Title)
	assert.Equal(t, content, body)

	content = "---\nno closing marker"
	_, body = splitFrontMatter(content)
	assert.Equal(t, content, body)
}
