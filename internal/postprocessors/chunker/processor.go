// Package chunker provides a token-window text chunking processor.
package chunker

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

// DefaultChunkTokens is the default number of tokens per chunk.
const DefaultChunkTokens = 250

// DefaultOverlapFraction is the default share of a chunk repeated in the next one.
const DefaultOverlapFraction = 0.2

// DefaultSlackTokens is how far a chunk end may move back to finish a sentence.
const DefaultSlackTokens = 25

// Processor splits section text into overlapping windows of
// whitespace-separated tokens. It implements the PostProcessor interface.
type Processor struct {
	chunkTokens int
	overlap     int
	slack       int
}

// Option configures the chunker processor.
type Option func(*processorConfig)

type processorConfig struct {
	chunkTokens int
	fraction    float64
	slack       int
}

// WithChunkTokens sets the target chunk size in tokens.
func WithChunkTokens(n int) Option {
	return func(c *processorConfig) {
		if n > 0 {
			c.chunkTokens = n
		}
	}
}

// WithOverlapFraction sets the overlap between consecutive chunks
// as a fraction of the chunk size.
func WithOverlapFraction(f float64) Option {
	return func(c *processorConfig) {
		if f >= 0 && f < 1 {
			c.fraction = f
		}
	}
}

// WithSlackTokens sets the sentence boundary search window.
func WithSlackTokens(n int) Option {
	return func(c *processorConfig) {
		if n >= 0 {
			c.slack = n
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	cfg := processorConfig{
		chunkTokens: DefaultChunkTokens,
		fraction:    DefaultOverlapFraction,
		slack:       DefaultSlackTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	settings := domain.ChunkSettings{ChunkTokens: cfg.chunkTokens, OverlapFraction: cfg.fraction}
	p := &Processor{
		chunkTokens: cfg.chunkTokens,
		overlap:     settings.OverlapTokens(),
		slack:       cfg.slack,
	}

	// The end may never move back into the overlap, or the window would stall.
	if maxSlack := p.chunkTokens - p.overlap - 1; p.slack > maxSlack {
		p.slack = maxSlack
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Overlap returns the overlap in tokens.
func (p *Processor) Overlap() int {
	return p.overlap
}

// token is a whitespace-delimited word with its byte span.
type token struct {
	start, end int
}

// Process splits section text into chunks.
// Input chunks are ignored; this processor creates new chunks from the text.
func (p *Processor) Process(ctx context.Context, text string, _ []domain.Chunk) ([]domain.Chunk, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		// Empty content produces no chunks
		return nil, nil
	}

	estimated := len(tokens)/(p.chunkTokens-p.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkTokens
		if end >= len(tokens) {
			end = len(tokens)
		} else {
			end = p.snapToSentence(text, tokens, start, end)
		}

		offset := tokens[start].start
		chunks = append(chunks, domain.Chunk{
			ID:       uuid.New().String(),
			Position: len(chunks),
			Offset:   offset,
			Text:     text[offset:tokens[end-1].end],
		})

		if end == len(tokens) {
			break
		}
		start = end - p.overlap
	}

	return chunks, nil
}

// snapToSentence moves end back to just after the latest sentence-ending
// token within the slack window, if there is one.
func (p *Processor) snapToSentence(text string, tokens []token, start, end int) int {
	floor := end - p.slack
	if lowest := start + p.overlap + 1; floor < lowest {
		floor = lowest
	}
	for e := end; e >= floor; e-- {
		t := tokens[e-1]
		if endsSentence(text[t.start:t.end]) {
			return e
		}
	}
	return end
}

func tokenize(text string) []token {
	var tokens []token
	inToken := false
	start := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inToken {
				tokens = append(tokens, token{start: start, end: i})
				inToken = false
			}
			continue
		}
		if !inToken {
			start = i
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, token{start: start, end: len(text)})
	}
	return tokens
}

// endsSentence reports whether a token closes a sentence, allowing
// trailing quotes and brackets after the terminal mark.
func endsSentence(tok string) bool {
	tok = strings.TrimRight(tok, `"')]}”’»`)
	if tok == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(tok)
	return r == '.' || r == '!' || r == '?' || r == '…'
}

// CountTokens returns the number of whitespace-separated tokens in text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
