package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// pageBreak is the form feed character some exporters put between pages.
const pageBreak = '\f'

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-java",
		"text/x-c",
		"text/x-c++",
		"text/x-ruby",
		"text/x-shellscript",
		"text/x-sql",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/javascript",
		"text/typescript",
		"text/css",
		"application/json",
		"application/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the upload's text. Form feeds mark page breaks and
// are replaced by newlines.
func (n *Normaliser) Normalise(_ context.Context, upload *domain.Upload) (*driven.NormaliseResult, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	text, err := Decode(upload.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}

	text, pages := SplitPages(text)
	return &driven.NormaliseResult{
		Text:           text,
		PageBoundaries: pages,
		MIMEType:       upload.MIMEType,
	}, nil
}

// Decode converts raw bytes to text. A byte order mark is dropped and line
// endings are normalised to "\n". Content that is not valid UTF-8 is rejected.
func Decode(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	text := strings.TrimPrefix(string(content), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text, nil
}

// SplitPages replaces form feeds with newlines and returns the byte offset
// where each page starts. The first page always starts at 0.
func SplitPages(text string) (string, []int) {
	pages := []int{0}
	if strings.IndexRune(text, pageBreak) < 0 {
		return text, pages
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == pageBreak {
			b.WriteByte('\n')
			pages = append(pages, b.Len())
			continue
		}
		b.WriteRune(r)
	}

	// A trailing form feed does not open a page.
	if last := pages[len(pages)-1]; last == b.Len() && len(pages) > 1 {
		pages = pages[:len(pages)-1]
	}
	return b.String(), pages
}
