package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser extracts text from PDF documents page by page.
type Normaliser struct{}

// New creates a new PDF normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the text of every page. Pages are joined with a
// newline and PageBoundaries records where each one starts. A PDF without
// a text layer yields empty text.
func (n *Normaliser) Normalise(ctx context.Context, upload *domain.Upload) (*driven.NormaliseResult, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	text, pages, title, err := extract(ctx, upload.Content)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}

	return &driven.NormaliseResult{
		Text:           text,
		PageBoundaries: pages,
		Title:          title,
		MIMEType:       upload.MIMEType,
	}, nil
}

// extract reads the page texts. The parser panics on some malformed
// input, so panics are turned into errors.
func extract(ctx context.Context, content []byte) (text string, pages []int, title string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", nil, "", err
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return "", nil, "", fmt.Errorf("no pages")
	}

	var (
		b      strings.Builder
		failed int
	)
	pages = make([]int, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", nil, "", err
		}
		if i > 1 {
			b.WriteByte('\n')
		}
		pages = append(pages, b.Len())

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			failed++
			logger.Debug("pdf: skipping page %d: %v", i, err)
			continue
		}
		b.WriteString(strings.TrimRight(pageText, " \t\r\n"))
	}
	if failed == numPages {
		return "", nil, "", fmt.Errorf("no readable pages")
	}

	return b.String(), pages, documentTitle(reader), nil
}

// documentTitle reads /Title from the document information dictionary.
func documentTitle(reader *pdf.Reader) string {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return strings.TrimSpace(info.Key("Title").Text())
}
