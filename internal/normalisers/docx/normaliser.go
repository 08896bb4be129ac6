package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const (
	documentPart = "word/document.xml"
	corePart     = "docProps/core.xml"
)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise extracts paragraph text from a DOCX archive. Heading styles
// become "#" lines and explicit page breaks become page boundaries.
func (n *Normaliser) Normalise(_ context.Context, upload *domain.Upload) (*driven.NormaliseResult, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(upload.Content), int64(len(upload.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}

	part, err := readPart(reader, documentPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}

	text, pages, err := parseDocument(part)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}

	return &driven.NormaliseResult{
		Text:           text,
		PageBoundaries: pages,
		Title:          extractTitle(reader),
		MIMEType:       upload.MIMEType,
	}, nil
}

var errMissingPart = errors.New("missing archive part")

func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%w: %s", errMissingPart, name)
}

// paragraph collects the runs of one <w:p> element.
type paragraph struct {
	text         strings.Builder
	style        string
	breakBefore  bool
	breaksInside bool
}

// parseDocument walks word/document.xml and returns the text and the
// byte offset where each page starts.
func parseDocument(content []byte) (string, []int, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var (
		out       strings.Builder
		pages     = []int{0}
		para      *paragraph
		lastBlank = true
		pending   bool
	)

	flush := func() {
		line := strings.TrimSpace(para.text.String())
		if level := headingLevel(para.style); level > 0 && line != "" {
			line = strings.Repeat("#", level) + " " + line
		}

		if para.breakBefore {
			pending = true
		}
		if line == "" && lastBlank {
			pending = pending || para.breaksInside
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		if pending && out.Len() > pages[len(pages)-1] {
			pages = append(pages, out.Len())
		}
		pending = para.breaksInside
		out.WriteString(line)
		lastBlank = line == ""
	}

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				para = &paragraph{}
			case "pStyle":
				if para != nil {
					para.style = attr(el, "val")
				}
			case "pageBreakBefore":
				if para != nil && attr(el, "val") != "0" && attr(el, "val") != "false" {
					para.breakBefore = true
				}
			case "t":
				var s string
				if err := decoder.DecodeElement(&s, &el); err != nil {
					return "", nil, err
				}
				if para != nil {
					para.text.WriteString(s)
				}
			case "tab":
				if para != nil {
					para.text.WriteByte('\t')
				}
			case "br", "cr":
				if para == nil {
					continue
				}
				if attr(el, "type") == "page" {
					para.breaksInside = true
				} else {
					para.text.WriteByte(' ')
				}
			}
		case xml.EndElement:
			if el.Name.Local == "p" && para != nil {
				flush()
				para = nil
			}
		}
	}

	text := strings.TrimRight(out.String(), "\n")
	for len(pages) > 1 && pages[len(pages)-1] >= len(text) {
		pages = pages[:len(pages)-1]
	}
	return text, pages, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingLevel maps a paragraph style id to a heading level, 0 for body text.
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case s == "title":
		return 1
	case strings.HasPrefix(s, "heading"):
		level, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
		if err != nil || level < 1 {
			return 0
		}
		return min(level, 6)
	}
	return 0
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// extractTitle reads the title from docProps/core.xml, if present.
func extractTitle(reader *zip.Reader) string {
	content, err := readPart(reader, corePart)
	if err != nil {
		return ""
	}
	var core coreXML
	if err := xml.Unmarshal(content, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
