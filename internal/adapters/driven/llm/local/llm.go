// Package local provides an offline, extractive LLM service.
//
// It does not generate new text. Prompts carry their grounding text in
// <context> tags and an optional <question>; the service returns the
// context sentences that best answer the question, or the most central
// sentences when there is none. Output is deterministic.
package local

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/textproc"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// ModelName is the reported model name.
const ModelName = "extractive"

// DefaultMaxWords bounds output when no MaxTokens is given.
const DefaultMaxWords = 120

// maxAnswerSentences bounds question answers.
const maxAnswerSentences = 3

var (
	contextTag  = regexp.MustCompile(`(?s)<context>(.*?)</context>`)
	questionTag = regexp.MustCompile(`(?s)<question>(.*?)</question>`)
)

// LLMService selects sentences from the prompt's context.
type LLMService struct{}

// NewLLMService creates a new local LLM service.
func NewLLMService() *LLMService {
	return &LLMService{}
}

// Generate returns context sentences relevant to the prompt.
// Returns an empty string when the context has no sentences.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body := prompt
	if m := contextTag.FindAllStringSubmatch(prompt, -1); len(m) > 0 {
		parts := make([]string, len(m))
		for i, sm := range m {
			parts[i] = sm[1]
		}
		body = strings.Join(parts, "\n\n")
	}
	question := ""
	if m := questionTag.FindStringSubmatch(prompt); m != nil {
		question = strings.TrimSpace(m[1])
	}

	budget := opts.MaxTokens
	if budget <= 0 {
		budget = DefaultMaxWords
	}

	sentences := dedupe(textproc.Sentences(body))
	if len(sentences) == 0 {
		return "", nil
	}

	var order []int
	limit := len(sentences)
	if question != "" {
		order = rankByQuestion(sentences, question)
		limit = maxAnswerSentences
	}
	if len(order) == 0 {
		order = rankByFrequency(sentences)
	}

	out := selectWithinBudget(sentences, order, budget, limit)
	return applyStopWords(out, opts.StopWords), nil
}

// rankByQuestion orders sentences sharing content words with the question,
// best first. Sentences with no shared words are left out.
func rankByQuestion(sentences []string, question string) []int {
	qset := textproc.TokenSet(question)
	if len(qset) == 0 {
		return nil
	}
	freq := rankScores(sentences)

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i, sent := range sentences {
		overlap := 0
		for t := range textproc.TokenSet(sent) {
			if _, ok := qset[t]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		hits = append(hits, scored{i, float64(overlap)/float64(len(qset)) + 0.1*freq[i]})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })

	order := make([]int, len(hits))
	for i, h := range hits {
		order[i] = h.idx
	}
	return order
}

// rankByFrequency orders sentences by normalised content word frequency,
// best first.
func rankByFrequency(sentences []string) []int {
	scores := rankScores(sentences)
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	return order
}

// rankScores scores each sentence by the frequency of its content words
// across all sentences, damped by sentence length.
func rankScores(sentences []string) []float64 {
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range textproc.ContentTokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	scores := make([]float64, len(sentences))
	for i, sent := range sentences {
		toks := textproc.ContentTokens(sent)
		if len(toks) == 0 || maxF == 0 {
			continue
		}
		sum := 0.0
		for _, tok := range toks {
			sum += freq[tok] / maxF
		}
		scores[i] = sum / math.Sqrt(float64(len(toks)))
	}
	return scores
}

// selectWithinBudget takes ranked sentences until the word budget or
// sentence limit is reached and returns them in document order.
// The best sentence is always included, truncated if needed.
func selectWithinBudget(sentences []string, order []int, budget, limit int) string {
	var picked []int
	words := 0
	for _, idx := range order {
		if len(picked) >= limit {
			break
		}
		n := textproc.WordCount(sentences[idx])
		if len(picked) > 0 && words+n > budget {
			continue
		}
		picked = append(picked, idx)
		words += n
	}
	sort.Ints(picked)

	parts := make([]string, len(picked))
	for i, idx := range picked {
		parts[i] = sentences[idx]
	}
	out := strings.Join(parts, " ")
	if fields := strings.Fields(out); len(fields) > budget {
		out = strings.Join(fields[:budget], " ")
	}
	return out
}

func dedupe(sentences []string) []string {
	seen := make(map[string]bool, len(sentences))
	out := sentences[:0]
	for _, s := range sentences {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func applyStopWords(text string, stops []string) string {
	for _, stop := range stops {
		if stop == "" {
			continue
		}
		if i := strings.Index(text, stop); i >= 0 {
			text = text[:i]
		}
	}
	return strings.TrimSpace(text)
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return ModelName
}

// Ping always succeeds; there is nothing to reach.
func (s *LLMService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
