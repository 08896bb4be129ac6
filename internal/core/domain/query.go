package domain

// Mode selects the synthesis strategy for a request.
type Mode string

// Available synthesis modes.
const (
	// ModeAnswer answers a question from retrieved chunks.
	ModeAnswer Mode = "answer"

	// ModeFullSummary summarises the whole document text.
	ModeFullSummary Mode = "full-summary"

	// ModeSectionSummary summarises one section's text.
	ModeSectionSummary Mode = "section-summary"

	// ModeTopicSummary summarises retrieved chunks about a topic.
	ModeTopicSummary Mode = "topic-summary"
)

// IsValid returns true if the mode is recognised.
func (m Mode) IsValid() bool {
	switch m {
	case ModeAnswer, ModeFullSummary, ModeSectionSummary, ModeTopicSummary:
		return true
	default:
		return false
	}
}

// UsesRetrieval reports whether the mode gathers context through the Retriever
// rather than from raw section or document text.
func (m Mode) UsesRetrieval() bool {
	return m == ModeAnswer || m == ModeTopicSummary
}

// String returns the string representation.
func (m Mode) String() string {
	return string(m)
}

// SummaryScope is the caller-facing scope of a summary request.
type SummaryScope string

// Summary scopes.
const (
	ScopeFull    SummaryScope = "full"
	ScopeSection SummaryScope = "section"
	ScopeTopic   SummaryScope = "topic"
)

// Mode maps the scope onto its synthesis mode.
func (s SummaryScope) Mode() (Mode, bool) {
	switch s {
	case ScopeFull, "":
		return ModeFullSummary, true
	case ScopeSection:
		return ModeSectionSummary, true
	case ScopeTopic:
		return ModeTopicSummary, true
	default:
		return "", false
	}
}

// Confidence is a tiered label derived from a validation score.
type Confidence string

// Confidence tiers.
const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// ValidationResult annotates a generated answer or summary with
// how well it is supported by its source text.
type ValidationResult struct {
	// Valid is true when Score is at or above the configured threshold.
	Valid bool `json:"is_valid" yaml:"is_valid"`

	// Score is the combined score in [0,1].
	Score float64 `json:"score" yaml:"score"`

	// Confidence is the tier label for Score.
	Confidence Confidence `json:"confidence" yaml:"confidence"`

	// FactualValidity is the support of the answer's claims by the source.
	FactualValidity float64 `json:"factual_validity" yaml:"factual_validity"`

	// QueryRelevance is the similarity of the answer to the query.
	// Nil when there was no query.
	QueryRelevance *float64 `json:"query_relevance,omitempty" yaml:"query_relevance,omitempty"`

	// UnsupportedClaims lists answer sentences with weak source support.
	UnsupportedClaims []string `json:"unsupported_claims,omitempty" yaml:"unsupported_claims,omitempty"`

	// Message explains which signals drove the score.
	Message string `json:"message" yaml:"message"`
}

// Hit is a retrieved chunk as presented to callers.
type Hit struct {
	Section string  `json:"section" yaml:"section"`
	ChunkID string  `json:"chunk_id" yaml:"chunk_id"`
	Text    string  `json:"text" yaml:"text"`
	Score   float64 `json:"score" yaml:"score"`
}

// QueryResult is the transient response to an answer or summary request.
type QueryResult struct {
	DocumentID     string            `json:"document_id" yaml:"document_id"`
	Mode           Mode              `json:"mode" yaml:"mode"`
	Query          string            `json:"query,omitempty" yaml:"query,omitempty"`
	Answer         string            `json:"answer" yaml:"answer"`
	Hits           []Hit             `json:"hits,omitempty" yaml:"hits,omitempty"`
	SourceSections []string          `json:"source_sections,omitempty" yaml:"source_sections,omitempty"`
	Validation     *ValidationResult `json:"validation,omitempty" yaml:"validation,omitempty"`
	Warnings       []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewHits converts scored chunks into caller-facing hits.
func NewHits(scored []ScoredChunk) []Hit {
	hits := make([]Hit, len(scored))
	for i, sc := range scored {
		hits[i] = Hit{
			Section: sc.SectionTitle,
			ChunkID: sc.Chunk.ID,
			Text:    sc.Chunk.Text,
			Score:   sc.Score,
		}
	}
	return hits
}

// DistinctSections returns the owning section titles of scored chunks,
// in first-seen order.
func DistinctSections(scored []ScoredChunk) []string {
	seen := make(map[string]bool, len(scored))
	var out []string
	for _, sc := range scored {
		if seen[sc.SectionTitle] {
			continue
		}
		seen[sc.SectionTitle] = true
		out = append(out, sc.SectionTitle)
	}
	return out
}
