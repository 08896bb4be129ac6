// Package sectioner splits extracted document text into titled sections.
//
// Detection is heuristic. When a line is ambiguous the detector prefers
// not to split: a missed heading leaves a larger section that chunk-level
// retrieval can still search, while a false heading misattributes text.
package sectioner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
)

// DefaultMaxHeadingChars is the default maximum heading length in bytes.
const DefaultMaxHeadingChars = 80

// DefaultMaxHeadingWords is the default maximum heading length in words.
const DefaultMaxHeadingWords = 12

// Generic titles used when no heading applies.
const (
	FullDocumentTitle = "Full Document"
	PreambleTitle     = "Preamble"
)

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+\S`)
	numberedPrefix  = regexp.MustCompile(`^(?:\d+(?:\.\d+)*[.)]|\d+(?:\.\d+)+|[IVXLCDM]+[.)]|[A-Z][.)])\s+\S`)
	listMarker      = regexp.MustCompile(`^(?:\d+[.)]|[-*•]|[a-z][.)])\s+`)
	keywordHeading  = regexp.MustCompile(`(?i)^(?:abstract|introduction|background|overview|executive summary|summary|conclusions?|references|bibliography|appendix(?:\s+\w+)?|acknowledge?ments|methodology|methods|results|discussion|related work|future work|problem statement(?:\s*[-.]?\s*\w+)?)\b`)
	numberedKeyword = regexp.MustCompile(`(?i)^(?:chapter|section|part|problem(?:\s+statement)?|ps)\s*[-.]?\s*(?:\d+|[ivxlc]+|[a-z])\b`)
	numberStrip     = regexp.MustCompile(`^(?:\d+(?:\.\d+)*[.)]?|[IVXLCDM]+[.)]|[A-Z][.)])\s+`)
	itemNumber      = regexp.MustCompile(`^(\d+)[.)]\s+\S`)
	fence           = regexp.MustCompile("^(?:```|~~~)")
)

// Detector finds section boundaries in plain text.
// It implements the SectionDetector interface.
type Detector struct {
	maxChars int
	maxWords int
}

// Option configures the detector.
type Option func(*Detector)

// WithMaxHeadingChars sets the maximum heading length in bytes.
func WithMaxHeadingChars(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxChars = n
		}
	}
}

// WithMaxHeadingWords sets the maximum heading length in words.
func WithMaxHeadingWords(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxWords = n
		}
	}
}

// New creates a detector with the given options.
func New(opts ...Option) *Detector {
	d := &Detector{
		maxChars: DefaultMaxHeadingChars,
		maxWords: DefaultMaxHeadingWords,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ driven.SectionDetector = (*Detector)(nil)

// line is one line of text with its byte offset.
type line struct {
	start int
	text  string // without the line terminator
}

func (l line) trimmed() string {
	return strings.TrimSpace(l.text)
}

func (l line) blank() bool {
	return l.trimmed() == ""
}

// heading is a promoted boundary.
type heading struct {
	start int
	title string
}

// Detect splits text into ordered sections whose spans concatenate to text.
func (d *Detector) Detect(text string) ([]domain.Section, error) {
	if !hasContent(text) {
		return nil, fmt.Errorf("%w: no extractable characters", domain.ErrMalformedDocument)
	}

	lines := splitLines(text)
	candidates := d.candidates(lines)

	var headings []heading
	for i := 0; i < len(lines); i++ {
		if candidates[i] == cueNone {
			continue
		}
		next := nextNonBlank(lines, i+1)
		if next < 0 {
			// A heading needs body text after it.
			continue
		}
		if candidates[next] > candidates[i] {
			// The stronger heading below wins; this line becomes body text.
			continue
		}
		headings = append(headings, heading{start: lines[i].start, title: cleanTitle(lines[i].trimmed())})
		if candidates[next] != cueNone {
			// Two headings in a row: keep the first, treat the second as body.
			i = next
		}
	}

	return buildSections(text, headings), nil
}

// maxGluedWords limits keyword headings that directly follow body text.
const maxGluedWords = 6

// cue is the strength of a heading candidate.
type cue int

const (
	cueNone cue = iota
	cueWeak
	cueStrong
)

// candidates scores lines that look like headings on their own.
func (d *Detector) candidates(lines []line) []cue {
	out := make([]cue, len(lines))
	inFence := false
	for i, l := range lines {
		t := l.trimmed()
		if fence.MatchString(t) {
			inFence = !inFence
			continue
		}
		if inFence || t == "" {
			continue
		}
		next := ""
		if i+1 < len(lines) {
			next = lines[i+1].trimmed()
		}
		c := d.isHeading(t, next)
		if c == cueNone {
			continue
		}
		// Without a blank line above, only explicit structure starts a section.
		if i > 0 && !lines[i-1].blank() && !breaksText(t, lines[i-1].trimmed()) {
			continue
		}
		if numberedPrefix.MatchString(t) && inNumberedRun(lines, i) {
			continue
		}
		out[i] = c
	}
	return out
}

// breaksText reports whether heading line t may directly follow the body
// line prev: a markdown heading, a short numbered keyword such as
// "Problem Statement 2", or a numbered line after a finished sentence.
func breaksText(t, prev string) bool {
	if markdownHeading.MatchString(t) {
		return true
	}
	bare := numberStrip.ReplaceAllString(t, "")
	if numberedKeyword.MatchString(bare) && len(strings.Fields(t)) <= maxGluedWords {
		return true
	}
	return numberedPrefix.MatchString(t) && endsSentence(prev)
}

func endsSentence(t string) bool {
	t = strings.TrimRight(t, `"')]”’`)
	return t != "" && strings.ContainsAny(t[len(t)-1:], ".!?:")
}

// inNumberedRun reports whether line i continues or starts a sequence of
// numbered items, such as a list with blank lines between its entries.
func inNumberedRun(lines []line, i int) bool {
	n, ok := leadingNumber(lines[i].trimmed())
	if !ok {
		return false
	}
	if next := nextNonBlank(lines, i+1); next >= 0 {
		if m, ok := leadingNumber(lines[next].trimmed()); ok && m == n+1 {
			return true
		}
	}
	if prev := prevNonBlank(lines, i-1); prev >= 0 {
		if m, ok := leadingNumber(lines[prev].trimmed()); ok && m == n-1 {
			return true
		}
	}
	return false
}

func leadingNumber(t string) (int, bool) {
	m := itemNumber.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// isHeading scores a standalone line. next is the line immediately after it.
func (d *Detector) isHeading(t, next string) cue {
	if isQuoted(t) {
		return cueNone
	}
	if markdownHeading.MatchString(t) {
		if len(t) <= d.maxChars+6 {
			return cueStrong
		}
		return cueNone
	}
	if len(t) > d.maxChars {
		return cueNone
	}
	words := strings.Fields(t)
	if len(words) > d.maxWords || !hasLetter(t) {
		return cueNone
	}
	if strings.ContainsAny(t[len(t)-1:], ".,;!?") {
		return cueNone
	}
	// A lowercase continuation means a hard-wrapped paragraph.
	if next != "" && startsLower(next) {
		return cueNone
	}

	switch {
	case numberedPrefix.MatchString(t):
		// Adjacent numbered lines form a list, not a run of headings.
		if next != "" && listMarker.MatchString(next) {
			return cueNone
		}
		return cueStrong
	case isAllCaps(t):
		return cueStrong
	}

	bare := numberStrip.ReplaceAllString(t, "")
	if numberedKeyword.MatchString(bare) {
		return cueStrong
	}
	if keywordHeading.MatchString(bare) && len(words) <= 6 {
		return cueStrong
	}
	if next == "" && len(words) <= 6 && isTitleCase(words) {
		return cueWeak
	}
	return cueNone
}

// buildSections turns promoted headings into covering sections.
func buildSections(text string, headings []heading) []domain.Section {
	if len(headings) == 0 {
		return []domain.Section{{Index: 0, Title: FullDocumentTitle, Start: 0, End: len(text)}}
	}

	var sections []domain.Section
	if pre := text[:headings[0].start]; strings.TrimSpace(pre) != "" {
		sections = append(sections, domain.Section{Title: PreambleTitle, Start: 0, End: headings[0].start})
	} else {
		headings[0].start = 0
	}

	for i, h := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		sections = append(sections, domain.Section{Title: h.title, Start: h.start, End: end})
	}

	seen := make(map[string]int, len(sections))
	for i := range sections {
		sections[i].Index = i
		if sections[i].Title == "" {
			sections[i].Title = fmt.Sprintf("Section %d", i+1)
		}
		sections[i].Title = uniqueTitle(sections[i].Title, seen)
	}
	return sections
}

// uniqueTitle appends a running index to repeated titles.
func uniqueTitle(title string, seen map[string]int) string {
	key := strings.ToLower(title)
	n, dup := seen[key]
	if !dup {
		seen[key] = 1
		return title
	}
	for {
		n++
		candidate := fmt.Sprintf("%s (%d)", title, n)
		ck := strings.ToLower(candidate)
		if _, taken := seen[ck]; !taken {
			seen[key] = n
			seen[ck] = 1
			return candidate
		}
	}
}

func splitLines(text string) []line {
	var lines []line
	start := 0
	for start <= len(text) {
		idx := strings.IndexByte(text[start:], '\n')
		if idx < 0 {
			if start < len(text) {
				lines = append(lines, line{start: start, text: text[start:]})
			}
			break
		}
		lines = append(lines, line{start: start, text: strings.TrimRight(text[start:start+idx], "\r")})
		start += idx + 1
	}
	return lines
}

func nextNonBlank(lines []line, from int) int {
	for i := from; i < len(lines); i++ {
		if !lines[i].blank() {
			return i
		}
	}
	return -1
}

func prevNonBlank(lines []line, from int) int {
	for i := from; i >= 0; i-- {
		if !lines[i].blank() {
			return i
		}
	}
	return -1
}

func cleanTitle(t string) string {
	t = strings.TrimLeft(t, "#")
	t = strings.TrimRight(t, "#")
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, ":")
	return strings.Join(strings.Fields(t), " ")
}

func hasContent(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isQuoted(t string) bool {
	return strings.HasPrefix(t, ">") || strings.HasPrefix(t, `"`) ||
		strings.HasPrefix(t, "“") || strings.HasPrefix(t, "«")
}

func startsLower(t string) bool {
	for _, r := range t {
		return unicode.IsLower(r)
	}
	return false
}

func isAllCaps(t string) bool {
	letters := 0
	for _, r := range t {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 3
}

var minorWords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true, "for": true,
	"in": true, "of": true, "on": true, "or": true, "the": true, "to": true, "with": true,
}

func isTitleCase(words []string) bool {
	for i, w := range words {
		r := []rune(w)
		if !unicode.IsLetter(r[0]) && !unicode.IsDigit(r[0]) {
			return false
		}
		if i > 0 && minorWords[strings.ToLower(w)] {
			continue
		}
		if unicode.IsLetter(r[0]) && !unicode.IsUpper(r[0]) {
			return false
		}
	}
	return true
}
