package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/logger"
	"github.com/custodia-labs/querynest/internal/textproc"
)

// DefaultGenerateTimeout bounds a single generation call.
const DefaultGenerateTimeout = 120 * time.Second

// maxCombineDepth bounds the rounds of merging partial summaries.
const maxCombineDepth = 4

// SynthesisInput is what a synthesis strategy works from.
type SynthesisInput struct {
	Mode domain.Mode

	// Query is the question for answers and the topic for topic summaries.
	Query string

	// Chunks are the ranked grounding chunks for retrieval modes.
	Chunks []domain.ScoredChunk

	// Text is the full section or document text for summary modes.
	Text string
}

type strategy func(ctx context.Context, in SynthesisInput) (string, error)

// Synthesizer produces answers and summaries through the generation capability.
type Synthesizer struct {
	llm        driven.LLMService
	prompts    driven.PromptStore
	settings   domain.SynthesisSettings
	timeout    time.Duration
	strategies map[domain.Mode]strategy
}

// NewSynthesizer creates a synthesizer. Zero settings fall back to defaults.
func NewSynthesizer(llm driven.LLMService, settings domain.SynthesisSettings, timeout time.Duration) *Synthesizer {
	defaults := domain.DefaultAppSettings().Synthesis
	if settings.MaxContextChars <= 0 {
		settings.MaxContextChars = defaults.MaxContextChars
	}
	if settings.MaxInputChars <= 0 {
		settings.MaxInputChars = defaults.MaxInputChars
	}
	if settings.AnswerMaxTokens <= 0 {
		settings.AnswerMaxTokens = defaults.AnswerMaxTokens
	}
	if settings.SummaryMaxTokens <= 0 {
		settings.SummaryMaxTokens = defaults.SummaryMaxTokens
	}
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}

	s := &Synthesizer{llm: llm, settings: settings, timeout: timeout}
	s.strategies = map[domain.Mode]strategy{
		domain.ModeAnswer:         s.answer,
		domain.ModeTopicSummary:   s.topicSummary,
		domain.ModeFullSummary:    s.textSummary,
		domain.ModeSectionSummary: s.textSummary,
	}
	return s
}

// SetPromptStore sets the store prompt templates are loaded from.
func (s *Synthesizer) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

var _ driven.PromptStoreAware = (*Synthesizer)(nil)

// Synthesize runs the strategy for in.Mode.
func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	run, ok := s.strategies[in.Mode]
	if !ok {
		return "", fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, in.Mode)
	}
	logger.Debug("Synthesizing %s with %s", in.Mode, s.llm.ModelName())
	return run(ctx, in)
}

func (s *Synthesizer) answer(ctx context.Context, in SynthesisInput) (string, error) {
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	prompt := fmt.Sprintf(s.prompt(driven.PromptAnswer), s.buildContext(in.Chunks), in.Query)
	return s.generate(ctx, prompt, s.settings.AnswerMaxTokens)
}

func (s *Synthesizer) topicSummary(ctx context.Context, in SynthesisInput) (string, error) {
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("%w: topic is empty", domain.ErrInvalidInput)
	}
	prompt := fmt.Sprintf(s.prompt(driven.PromptTopicSummary), s.buildContext(in.Chunks), in.Query)
	return s.generate(ctx, prompt, s.settings.SummaryMaxTokens)
}

// textSummary summarises text directly, or window by window with the
// partial summaries merged when it exceeds the input limit.
func (s *Synthesizer) textSummary(ctx context.Context, in SynthesisInput) (string, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", fmt.Errorf("%w: nothing to summarise", domain.ErrInvalidInput)
	}
	if len(text) <= s.settings.MaxInputChars {
		return s.generate(ctx, s.summarisePrompt(text), s.settings.SummaryMaxTokens)
	}

	windows := splitWindows(text, s.settings.MaxInputChars)
	logger.Debug("Summarising %d windows of up to %d chars", len(windows), s.settings.MaxInputChars)

	partials := make([]string, 0, len(windows))
	for _, w := range windows {
		p, err := s.generate(ctx, s.summarisePrompt(w), s.settings.SummaryMaxTokens)
		if err != nil {
			return "", err
		}
		partials = append(partials, p)
	}
	return s.combine(ctx, partials, 1)
}

func (s *Synthesizer) combine(ctx context.Context, partials []string, depth int) (string, error) {
	joined := strings.Join(partials, "\n\n")
	if len(joined) <= s.settings.MaxInputChars || depth >= maxCombineDepth {
		joined = truncateRunes(joined, s.settings.MaxInputChars)
		return s.generate(ctx, s.combinePrompt(joined), s.settings.SummaryMaxTokens)
	}

	groups := splitWindows(joined, s.settings.MaxInputChars)
	next := make([]string, 0, len(groups))
	for _, g := range groups {
		out, err := s.generate(ctx, s.combinePrompt(g), s.settings.SummaryMaxTokens)
		if err != nil {
			return "", err
		}
		next = append(next, out)
	}
	return s.combine(ctx, next, depth+1)
}

func (s *Synthesizer) summarisePrompt(text string) string {
	return fmt.Sprintf(s.prompt(driven.PromptSummarise), s.settings.SummaryMaxTokens, text)
}

func (s *Synthesizer) combinePrompt(text string) string {
	return fmt.Sprintf(s.prompt(driven.PromptCombine), s.settings.SummaryMaxTokens, text)
}

// generate calls the capability under a timeout. Errors and blank output
// both surface as ErrGenerationUnavailable.
func (s *Synthesizer) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{MaxTokens: maxTokens, Temperature: 0.2})
	if err != nil {
		if errors.Is(err, domain.ErrGenerationUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: %s returned no text", domain.ErrGenerationUnavailable, s.llm.ModelName())
	}
	return out, nil
}

// buildContext joins chunk texts in rank order, dropping the lowest-ranked
// chunks that do not fit. The top chunk is truncated when it alone is too long.
func (s *Synthesizer) buildContext(chunks []domain.ScoredChunk) string {
	limit := s.settings.MaxContextChars
	var b strings.Builder
	for i, sc := range chunks {
		text := strings.TrimSpace(sc.Chunk.Text)
		sep := 0
		if b.Len() > 0 {
			sep = 2
		}
		if b.Len()+sep+len(text) > limit {
			if i == 0 {
				b.WriteString(truncateRunes(text, limit))
			}
			break
		}
		if sep > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String()
}

func (s *Synthesizer) prompt(name string) string {
	if s.prompts != nil {
		if p, err := s.prompts.Load(name); err == nil && p != "" {
			return p
		}
	}
	return driven.DefaultPrompts()[name]
}

// splitWindows cuts text into pieces of at most limit bytes, preferring
// paragraph, then sentence boundaries.
func splitWindows(text string, limit int) []string {
	var windows []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			windows = append(windows, cur.String())
			cur.Reset()
		}
	}
	add := func(piece, sep string) {
		if cur.Len() > 0 && cur.Len()+len(sep)+len(piece) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(piece)
	}

	for _, para := range textproc.Paragraphs(text) {
		if len(para) <= limit {
			add(para, "\n\n")
			continue
		}
		for _, sent := range textproc.Sentences(para) {
			for len(sent) > limit {
				head := truncateRunes(sent, limit)
				if head == "" {
					_, size := utf8.DecodeRuneInString(sent)
					head = sent[:size]
				}
				flush()
				windows = append(windows, head)
				sent = strings.TrimSpace(sent[len(head):])
			}
			if sent != "" {
				add(sent, " ")
			}
		}
	}
	flush()
	return windows
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
