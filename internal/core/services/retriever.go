package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/logger"
	"github.com/custodia-labs/querynest/internal/textproc"
)

// DefaultTopK is the number of chunks returned when the caller gives none.
const DefaultTopK = 4

// DefaultEmbedTimeout bounds a single query embedding call.
const DefaultEmbedTimeout = 30 * time.Second

var (
	// numberedKeyPattern finds "problem statement 3", "PS-3", "section 2" and the like.
	numberedKeyPattern = regexp.MustCompile(
		`(?i)\b(problem\s+statement|problem|ps|section|chapter|part)\s*[-#:]?\s*(\d+)\b`)

	// queryKeyPattern finds the section references worth scoping a question to.
	queryKeyPattern = regexp.MustCompile(`(?i)\b(problem\s+statement|ps)\s*[-#:]?\s*(\d+)\b`)

	leadingNumber = regexp.MustCompile(`^\s*(\d+)[.)]?\s`)
)

// Retrieval is the ranked outcome of a query against one document.
type Retrieval struct {
	Chunks []domain.ScoredChunk

	// Sections lists the titles the search was restricted to; empty means
	// the whole document was searched.
	Sections []string

	Warnings []string
}

// Retriever ranks a document's chunks by similarity to a query.
type Retriever struct {
	embedding driven.EmbeddingService
	timeout   time.Duration
	topK      int
}

// NewRetriever creates a retriever embedding queries with embedding,
// which must be the service the document was indexed with.
func NewRetriever(embedding driven.EmbeddingService, timeout time.Duration, topK int) *Retriever {
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{embedding: embedding, timeout: timeout, topK: topK}
}

// Retrieve returns the k chunks most similar to query, best first.
// Equal scores keep document order.
//
// A section filter that matches no section, or only sections without
// chunks, falls back to the whole document and adds a warning.
// With no filter, a "problem statement N" mention in the query scopes
// the search when such a section exists.
func (r *Retriever) Retrieve(ctx context.Context, doc *domain.Document, query, section string, k int) (*Retrieval, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = r.topK
	}
	if doc.ChunkCount() == 0 {
		return nil, fmt.Errorf("%w: document %q has no indexed chunks", domain.ErrEmptyIndex, doc.Name)
	}
	if doc.EmbeddingModel != "" && doc.EmbeddingModel != r.embedding.ModelName() {
		return nil, fmt.Errorf("%w: document indexed with %q, current model is %q; reindex the document",
			domain.ErrEmbeddingMismatch, doc.EmbeddingModel, r.embedding.ModelName())
	}

	result := &Retrieval{}
	scope := r.scope(doc, query, section, result)

	searchText := query
	if section == "" && len(result.Sections) > 0 {
		if stripped := strings.TrimSpace(queryKeyPattern.ReplaceAllString(query, "")); stripped != "" {
			searchText = stripped
		}
	}

	qvec, err := r.embed(ctx, searchText)
	if err != nil {
		return nil, err
	}
	if doc.Dimensions > 0 && len(qvec) != doc.Dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index has %d",
			domain.ErrEmbeddingMismatch, len(qvec), doc.Dimensions)
	}

	var candidates []domain.ScoredChunk
	for _, i := range scope {
		sec := doc.Sections[i]
		for _, ch := range sec.Chunks {
			candidates = append(candidates, domain.ScoredChunk{
				SectionIndex: i,
				SectionTitle: sec.Title,
				Chunk:        ch,
				Score:        textproc.Cosine(qvec, ch.Embedding),
			})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	result.Chunks = candidates

	logger.Debug("Retrieved %d chunks for %q from %d sections", len(candidates), searchText, len(scope))
	return result, nil
}

// scope returns the section indices to search in document order.
func (r *Retriever) scope(doc *domain.Document, query, filter string, result *Retrieval) []int {
	all := make([]int, len(doc.Sections))
	for i := range doc.Sections {
		all[i] = i
	}

	derived := false
	if filter == "" {
		m := queryKeyPattern.FindString(query)
		if m == "" {
			return all
		}
		filter, derived = m, true
	}

	matched := withChunks(doc, ResolveSections(doc, filter))
	if len(matched) == 0 {
		if !derived {
			err := fmt.Errorf("%w: %q", domain.ErrSectionNotFound, filter)
			result.Warnings = append(result.Warnings, err.Error()+"; searched the whole document")
		}
		return all
	}

	for _, i := range matched {
		result.Sections = append(result.Sections, doc.Sections[i].Title)
	}
	return matched
}

func (r *Retriever) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vec, err := r.embedding.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// ResolveSections finds the sections a user-supplied name refers to.
// An exact case-insensitive title wins, then titles sharing a numbered key
// such as "problem statement 3" or "ps 3", then titles containing the name.
func ResolveSections(doc *domain.Document, name string) []int {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	lower := strings.ToLower(name)

	for i, sec := range doc.Sections {
		if strings.ToLower(sec.Title) == lower {
			return []int{i}
		}
	}

	var out []int
	if keys := numberedKeys(name); len(keys) > 0 {
		for i, sec := range doc.Sections {
			for k := range numberedKeys(sec.Title) {
				if keys[k] {
					out = append(out, i)
					break
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	for i, sec := range doc.Sections {
		if strings.Contains(strings.ToLower(sec.Title), lower) {
			out = append(out, i)
		}
	}
	return out
}

// numberedKeys normalises numbered references to "ps N" or "section N" style keys.
func numberedKeys(s string) map[string]bool {
	keys := make(map[string]bool)
	for _, m := range numberedKeyPattern.FindAllStringSubmatch(s, -1) {
		kw := strings.Join(strings.Fields(strings.ToLower(m[1])), " ")
		switch kw {
		case "problem statement", "problem", "ps":
			kw = "ps"
		}
		keys[kw+" "+m[2]] = true
	}
	if m := leadingNumber.FindStringSubmatch(s); m != nil {
		keys["section "+m[1]] = true
	}
	return keys
}

func withChunks(doc *domain.Document, idx []int) []int {
	out := idx[:0:0]
	for _, i := range idx {
		if len(doc.Sections[i].Chunks) > 0 {
			out = append(out, i)
		}
	}
	return out
}
