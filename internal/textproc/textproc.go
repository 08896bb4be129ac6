// Package textproc holds the lexical helpers shared by the local
// capabilities and the validator: word tokens, stopwords, sentence
// splitting and vector similarity.
package textproc

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

var (
	wordPattern     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+(?:[.,]\p{N}+)*`)
	sentenceBreak   = regexp.MustCompile(`[.!?…]+["')\]”’]*\s+`)
	paragraphBreak  = regexp.MustCompile(`\n\s*\n`)
	whitespaceRunes = regexp.MustCompile(`\s+`)
)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on",
		"at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its",
		"this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further",
		"than", "so", "such", "into", "about", "between", "through", "during", "before", "after",
		"above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don",
		"should", "now", "do", "does", "did", "has", "have", "had", "not", "no", "what", "which",
		"who", "whom", "when", "where", "why", "how", "i", "you", "he", "she", "we", "they", "me",
		"him", "her", "us", "them", "my", "your", "our", "their", "there", "here", "all", "any",
		"each", "also", "would", "could", "may", "might", "must", "shall", "tell", "please",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Tokens returns lowercase word and number tokens in order.
func Tokens(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// IsStopword reports whether a lowercase token carries no content.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// ContentTokens returns Tokens without stopwords.
func ContentTokens(text string) []string {
	toks := Tokens(text)
	out := toks[:0]
	for _, t := range toks {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}

// TokenSet returns the distinct content tokens of text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range ContentTokens(text) {
		set[t] = struct{}{}
	}
	return set
}

// Coverage returns the share of distinct content tokens of text
// that appear in vocab. Returns 0 when text has no content tokens.
func Coverage(text string, vocab map[string]struct{}) float64 {
	set := TokenSet(text)
	if len(set) == 0 {
		return 0
	}
	hit := 0
	for t := range set {
		if _, ok := vocab[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(set))
}

// Sentences splits text into trimmed sentences, keeping terminal punctuation.
// Paragraph breaks also end a sentence.
func Sentences(text string) []string {
	var out []string
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(whitespaceRunes.ReplaceAllString(para, " "))
		if para == "" {
			continue
		}
		last := 0
		for _, loc := range sentenceBreak.FindAllStringIndex(para+" ", -1) {
			end := loc[1]
			if end > len(para) {
				end = len(para)
			}
			if s := strings.TrimSpace(para[last:end]); s != "" {
				out = append(out, s)
			}
			last = end
		}
		if last < len(para) {
			if s := strings.TrimSpace(para[last:]); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Paragraphs splits text on blank lines and drops empty paragraphs.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// Cosine returns the cosine similarity of a and b.
// Returns 0 when either vector has zero magnitude or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Normalize scales v to unit length in place. Zero vectors are left unchanged.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Clamp01 limits x to [0,1].
func Clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
