package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/textproc"
)

// minClaimTokens is the number of content tokens a sentence needs to count as a claim.
const minClaimTokens = 3

// Validator scores generated text against the chunks it was grounded on.
type Validator struct {
	embedding driven.EmbeddingService
	settings  domain.ValidationSettings
	timeout   time.Duration
}

// NewValidator creates a validator. Zero settings fall back to defaults.
func NewValidator(embedding driven.EmbeddingService, settings domain.ValidationSettings, timeout time.Duration) *Validator {
	defaults := domain.DefaultAppSettings().Validation
	if settings.Threshold <= 0 {
		settings.Threshold = defaults.Threshold
	}
	if settings.HighConfidence <= 0 {
		settings.HighConfidence = defaults.HighConfidence
	}
	if settings.FactualWeight <= 0 || settings.FactualWeight > 1 {
		settings.FactualWeight = defaults.FactualWeight
	}
	if settings.ClaimSupport <= 0 {
		settings.ClaimSupport = defaults.ClaimSupport
	}
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}
	return &Validator{embedding: embedding, settings: settings, timeout: timeout}
}

// Validate checks answer against sources. Query relevance is scored only
// when query is non-empty. A low score is a normal result; errors mean the
// embedding capability failed.
func (v *Validator) Validate(
	ctx context.Context, answer string, sources []domain.Chunk, query string,
) (*domain.ValidationResult, error) {
	answer = strings.TrimSpace(answer)
	query = strings.TrimSpace(query)
	if answer == "" {
		return v.Result(0, nil, nil), nil
	}

	claims := claimsOf(answer)
	texts := make([]string, 0, len(claims)+2)
	texts = append(texts, claims...)
	texts = append(texts, answer)
	if query != "" {
		texts = append(texts, query)
	}

	vecs, err := v.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	claimVecs := vecs[:len(claims)]
	answerVec := vecs[len(claims)]

	var src strings.Builder
	for _, ch := range sources {
		src.WriteString(ch.Text)
		src.WriteByte('\n')
	}
	vocab := textproc.TokenSet(src.String())

	var total float64
	var unsupported []string
	for i, claim := range claims {
		best := 0.0
		for _, ch := range sources {
			if c := textproc.Cosine(claimVecs[i], ch.Embedding); c > best {
				best = c
			}
		}
		support := 0.5*textproc.Coverage(claim, vocab) + 0.5*best
		if support < v.settings.ClaimSupport {
			unsupported = append(unsupported, claim)
		}
		total += support
	}
	factual := total / float64(len(claims))

	var relevance *float64
	if query != "" {
		queryVec := vecs[len(claims)+1]
		r := 0.5*textproc.Coverage(query, textproc.TokenSet(answer)) +
			0.5*textproc.Clamp01(textproc.Cosine(answerVec, queryVec))
		relevance = &r
	}

	return v.Result(factual, relevance, unsupported), nil
}

// Result combines the signals into a ValidationResult.
// Without a relevance signal the score is the factual validity alone.
func (v *Validator) Result(factual float64, relevance *float64, unsupported []string) *domain.ValidationResult {
	factual = textproc.Clamp01(factual)
	score := factual
	if relevance != nil {
		r := textproc.Clamp01(*relevance)
		relevance = &r
		w := v.settings.FactualWeight
		score = w*factual + (1-w)*r
	}
	score = textproc.Clamp01(score)

	valid, confidence := v.Classify(score)
	return &domain.ValidationResult{
		Valid:             valid,
		Score:             score,
		Confidence:        confidence,
		FactualValidity:   factual,
		QueryRelevance:    relevance,
		UnsupportedClaims: unsupported,
		Message:           v.message(valid, factual, relevance, len(unsupported)),
	}
}

// Classify maps a score to validity and a confidence tier.
// A score equal to the threshold is valid.
func (v *Validator) Classify(score float64) (bool, domain.Confidence) {
	switch {
	case score >= v.settings.HighConfidence:
		return true, domain.ConfidenceHigh
	case score >= v.settings.Threshold:
		return true, domain.ConfidenceMedium
	default:
		return false, domain.ConfidenceLow
	}
}

func (v *Validator) message(valid bool, factual float64, relevance *float64, unsupported int) string {
	var weak []string
	if factual < v.settings.Threshold {
		msg := fmt.Sprintf("low factual validity (%.2f)", factual)
		if unsupported > 0 {
			msg += fmt.Sprintf(": %d %s not supported by the source text", unsupported, plural(unsupported, "claim is", "claims are"))
		}
		weak = append(weak, msg)
	}
	if relevance != nil && *relevance < v.settings.Threshold {
		weak = append(weak, fmt.Sprintf("low query relevance (%.2f): the answer does not address the question directly", *relevance))
	}

	switch {
	case len(weak) > 0 && valid:
		return "Supported overall, but " + strings.Join(weak, "; ")
	case len(weak) > 0:
		return "Needs review: " + strings.Join(weak, "; ")
	case !valid:
		return "Needs review: the combined score is below the validity threshold"
	case unsupported > 0:
		return fmt.Sprintf("Supported by the source text; %d %s weakly supported",
			unsupported, plural(unsupported, "claim is", "claims are"))
	default:
		return "Supported by the source text"
	}
}

func (v *Validator) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	vecs, err := v.embedding.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", domain.ErrEmbeddingUnavailable, len(vecs), len(texts))
	}
	return vecs, nil
}

// claimsOf returns the answer sentences that carry enough content to check.
// An answer with no such sentence is checked as a single claim.
func claimsOf(answer string) []string {
	var claims []string
	for _, s := range textproc.Sentences(answer) {
		if len(textproc.ContentTokens(s)) >= minClaimTokens {
			claims = append(claims, s)
		}
	}
	if len(claims) == 0 {
		return []string{answer}
	}
	return claims
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
