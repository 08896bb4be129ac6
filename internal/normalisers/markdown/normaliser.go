package markdown

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise converts markdown to plain text. Headings stay on their own
// lines with their "#" markers so section detection can see them.
func (n *Normaliser) Normalise(_ context.Context, upload *domain.Upload) (*driven.NormaliseResult, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	content, err := plaintext.Decode(upload.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptFile, upload.Name, err)
	}

	meta, body := splitFrontMatter(content)
	text := Strip(body)

	title := meta.Title
	if title == "" {
		title = Title(text)
	}

	return &driven.NormaliseResult{
		Text:           text,
		PageBoundaries: []int{0},
		Title:          title,
		MIMEType:       upload.MIMEType,
	}, nil
}

// frontMatter holds the fields read from a leading YAML block.
type frontMatter struct {
	Title string `yaml:"title"`
}

// splitFrontMatter separates a leading "---" YAML block from the body.
// Malformed front matter is left in the body.
func splitFrontMatter(content string) (frontMatter, string) {
	var meta frontMatter
	if !strings.HasPrefix(content, "---\n") {
		return meta, content
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, content
	}
	after := rest[end+len("\n---"):]
	if after != "" && after[0] != '\n' {
		return meta, content
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return frontMatter{}, content
	}
	meta.Title = strings.TrimSpace(meta.Title)
	return meta, strings.TrimPrefix(after, "\n")
}

// Pre-compiled regular expressions for markdown parsing.
var (
	atxHeading     = regexp.MustCompile(`^ {0,3}(#{1,6})[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`)
	setextH1       = regexp.MustCompile(`^ {0,3}=+[ \t]*$`)
	setextH2       = regexp.MustCompile(`^ {0,3}-+[ \t]*$`)
	fence          = regexp.MustCompile("^ {0,3}(```|~~~)")
	horizontalRule = regexp.MustCompile(`^ {0,3}([-*_])(?:[ \t]*([-*_])){2,}[ \t]*$`)
	blockquote     = regexp.MustCompile(`^ {0,3}>[ \t]?`)
	bulletMarker   = regexp.MustCompile(`^([ \t]*)[-*+][ \t]+(?:\[[ xX]\][ \t]+)?`)
	tableDivider   = regexp.MustCompile(`^[ \t]*\|?[ \t]*:?-+:?[ \t]*(?:\|[ \t]*:?-+:?[ \t]*)*\|?[ \t]*$`)
	linkDefinition = regexp.MustCompile(`^ {0,3}\[[^\]]+\]:[ \t]+\S+`)
	htmlComment    = regexp.MustCompile(`(?s)<!--.*?-->`)
	image          = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	inlineLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	referenceLink  = regexp.MustCompile(`\[([^\]]+)\]\[[^\]]*\]`)
	autoLink       = regexp.MustCompile(`<((?:https?|mailto):[^>\s]+)>`)
	inlineCode     = regexp.MustCompile("`+([^`]+?)`+")
	strongStar     = regexp.MustCompile(`\*\*(\S(?:.*?\S)?)\*\*`)
	strongUnder    = regexp.MustCompile(`(^|[^\w])__(\S(?:.*?\S)?)__([^\w]|$)`)
	emStar         = regexp.MustCompile(`\*(\S(?:[^*]*?\S)?)\*`)
	emUnder        = regexp.MustCompile(`(^|[^\w])_(\S(?:[^_]*?\S)?)_([^\w]|$)`)
	strike         = regexp.MustCompile(`~~(\S(?:.*?\S)?)~~`)
	headingMarks   = regexp.MustCompile(`^[ \t]*#+[ \t]*`)
	escaped        = regexp.MustCompile("\\\\([\\\\`*_{}\\[\\]()#+\\-.!|~<>])")
	multiNewlines  = regexp.MustCompile(`\n{3,}`)
)

// Strip removes markdown syntax and returns plain text. ATX and setext
// headings come out as "# Title" lines. Code block contents are kept
// without their fences.
func Strip(content string) string {
	content = htmlComment.ReplaceAllString(content, "")

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	inFence := false
	fenceMarker := ""

	for _, line := range lines {
		if m := fence.FindStringSubmatch(line); m != nil {
			switch {
			case !inFence:
				inFence, fenceMarker = true, m[1]
				continue
			case m[1] == fenceMarker:
				inFence = false
				continue
			}
		}
		if inFence {
			// A comment line in code must not read as a heading.
			out = append(out, headingMarks.ReplaceAllString(line, ""))
			continue
		}

		if m := atxHeading.FindStringSubmatch(line); m != nil {
			out = appendHeading(out, len(m[1]), inline(m[2]))
			continue
		}

		prev := lastLine(out)
		if prev != "" && !strings.HasPrefix(prev, "#") {
			if setextH1.MatchString(line) {
				out = appendHeading(out[:len(out)-1], 1, prev)
				continue
			}
			if setextH2.MatchString(line) {
				out = appendHeading(out[:len(out)-1], 2, prev)
				continue
			}
		}

		switch {
		case horizontalRule.MatchString(line):
			out = append(out, "")
			continue
		case tableDivider.MatchString(line) && strings.Contains(line, "|"), linkDefinition.MatchString(line):
			continue
		}

		line = blockquote.ReplaceAllString(line, "")
		line = bulletMarker.ReplaceAllString(line, "$1")
		if strings.Contains(line, "|") {
			line = tableRow(line)
		}
		out = append(out, inline(line))
	}

	text := strings.Join(out, "\n")
	text = multiNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Title returns the text of the first top-level heading, or of the first
// heading of any level when there is no top-level one.
func Title(text string) string {
	first := ""
	for _, line := range strings.Split(text, "\n") {
		m := atxHeading.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if len(m[1]) == 1 {
			return strings.TrimSpace(m[2])
		}
		if first == "" {
			first = strings.TrimSpace(m[2])
		}
	}
	return first
}

// appendHeading writes a heading as a standalone line.
func appendHeading(out []string, level int, title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		return out
	}
	if lastLine(out) != "" {
		out = append(out, "")
	}
	return append(out, strings.Repeat("#", level)+" "+title)
}

func lastLine(out []string) string {
	if len(out) == 0 {
		return ""
	}
	return strings.TrimSpace(out[len(out)-1])
}

// tableRow turns "| a | b |" into "a | b".
func tableRow(line string) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "|") {
		return line
	}
	trimmed = strings.Trim(trimmed, "|")
	cells := strings.Split(trimmed, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return strings.Join(cells, " | ")
}

// escapeBase maps backslash-escaped ASCII into a private use range so the
// inline rules skip them.
const escapeBase = 0xE000

// inline strips emphasis, links, images and code spans from a line.
func inline(s string) string {
	s = escaped.ReplaceAllStringFunc(s, func(m string) string {
		return string(rune(escapeBase + int(m[1])))
	})
	s = image.ReplaceAllString(s, "$1")
	s = inlineLink.ReplaceAllString(s, "$1")
	s = referenceLink.ReplaceAllString(s, "$1")
	s = autoLink.ReplaceAllString(s, "$1")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = strongStar.ReplaceAllString(s, "$1")
	s = strongUnder.ReplaceAllString(s, "$1$2$3")
	s = emStar.ReplaceAllString(s, "$1")
	s = emUnder.ReplaceAllString(s, "$1$2$3")
	s = strike.ReplaceAllString(s, "$1")
	s = strings.Map(func(r rune) rune {
		if r >= escapeBase && r < escapeBase+0x80 {
			return r - escapeBase
		}
		return r
	}, s)
	return strings.TrimRight(s, " \t")
}
