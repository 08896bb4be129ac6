package html

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/normalisers/markdown"
	"github.com/custodia-labs/querynest/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Elements that never carry document text.
var droppedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "aside": true, "form": true, "iframe": true, "svg": true,
	"button": true, "input": true, "object": true, "embed": true,
}

// Normaliser handles HTML documents.
type Normaliser struct {
	converter *md.Converter
}

// New creates a new HTML normaliser.
func New() *Normaliser {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Normaliser{converter: converter}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts HTML to markdown and then to plain text, so <h1>-<h6>
// elements come out as "#" heading lines.
func (n *Normaliser) Normalise(_ context.Context, upload *domain.Upload) (*driven.NormaliseResult, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	content, err := plaintext.Decode(upload.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}
	title := extractTitle(doc)

	body, err := renderBody(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}

	converted, err := n.converter.ConvertString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}

	text := markdown.Strip(converted)
	if title == "" {
		title = markdown.Title(text)
	}

	return &driven.NormaliseResult{
		Text:           text,
		PageBoundaries: []int{0},
		Title:          title,
		MIMEType:       upload.MIMEType,
	}, nil
}

// extractTitle returns the text of the first <title> element.
func extractTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return strings.Join(strings.Fields(textContent(n)), " ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := extractTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// renderBody returns the HTML of the main content area: <main> or
// <article> when present, <body> otherwise.
func renderBody(doc *html.Node) (string, error) {
	removeDropped(doc)

	root := findElement(doc, "main")
	if root == nil {
		root = findElement(doc, "article")
	}
	if root == nil {
		root = findElement(doc, "body")
	}
	if root == nil {
		root = doc
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// removeDropped detaches every element in droppedElements.
func removeDropped(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && droppedElements[c.Data] {
			n.RemoveChild(c)
			continue
		}
		removeDropped(c)
	}
}
