package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(f string) error {
	switch f {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("%w: unknown output format %q (want text, json or yaml)", domain.ErrInvalidInput, f)
	}
}

// Theme is the colour palette for terminal output.
type Theme struct {
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() Theme {
	return Theme{
		Primary: lipgloss.Color("#7C3AED"), // Purple
		Muted:   lipgloss.Color("#6C7086"), // Medium gray
		Success: lipgloss.Color("#A6E3A1"), // Green
		Warning: lipgloss.Color("#F9E2AF"), // Yellow
		Error:   lipgloss.Color("#F38BA8"), // Red
	}
}

// styles holds the rendered styles for text output.
type styles struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	warning lipgloss.Style
	answer  lipgloss.Style

	confidence map[domain.Confidence]lipgloss.Style
}

func newStyles(theme Theme) styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		warning: lipgloss.NewStyle().Foreground(theme.Warning),
		answer: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Muted).
			Padding(0, 1),
		confidence: map[domain.Confidence]lipgloss.Style{
			domain.ConfidenceHigh:   lipgloss.NewStyle().Bold(true).Foreground(theme.Success),
			domain.ConfidenceMedium: lipgloss.NewStyle().Bold(true).Foreground(theme.Warning),
			domain.ConfidenceLow:    lipgloss.NewStyle().Bold(true).Foreground(theme.Error),
		},
	}
}

var outputStyles = newStyles(DefaultTheme())

// writeStructured writes v as JSON or YAML. It reports false for text output.
func writeStructured(w io.Writer, v any) (bool, error) {
	switch outputFormat {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

// renderResult writes a query result in the selected format.
func renderResult(w io.Writer, result *domain.QueryResult) error {
	if done, err := writeStructured(w, result); done {
		return err
	}

	st := outputStyles
	var b strings.Builder

	b.WriteString(st.answer.Render(strings.TrimSpace(result.Answer)))
	b.WriteString("\n")

	if v := result.Validation; v != nil {
		label := st.confidence[v.Confidence].Render(string(v.Confidence))
		status := "valid"
		if !v.Valid {
			status = "not valid"
		}
		fmt.Fprintf(&b, "\nConfidence: %s (score %.2f, %s)\n", label, v.Score, status)
		fmt.Fprintf(&b, "  Factual validity: %.2f\n", v.FactualValidity)
		if v.QueryRelevance != nil {
			fmt.Fprintf(&b, "  Query relevance:  %.2f\n", *v.QueryRelevance)
		}
		if v.Message != "" {
			b.WriteString(st.muted.Render("  "+v.Message) + "\n")
		}
		for _, claim := range v.UnsupportedClaims {
			b.WriteString(st.warning.Render("  unsupported: "+claim) + "\n")
		}
	}

	if len(result.SourceSections) > 0 {
		b.WriteString("\n" + st.title.Render("Sources") + "\n")
		for _, s := range result.SourceSections {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}

	for _, warning := range result.Warnings {
		b.WriteString(st.warning.Render("Warning: "+warning) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// documentView is the structured form of a document listing.
type documentView struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	MIMEType     string   `json:"mime_type" yaml:"mime_type"`
	Active       bool     `json:"active" yaml:"active"`
	Sections     []string `json:"sections" yaml:"sections"`
	Chunks       int      `json:"chunks" yaml:"chunks"`
	FullyIndexed bool     `json:"fully_indexed" yaml:"fully_indexed"`
	SizeBytes    int64    `json:"size_bytes" yaml:"size_bytes"`
	Created      string   `json:"created" yaml:"created"`
	Warnings     []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func viewOf(doc *domain.Document) documentView {
	return documentView{
		ID:           doc.ID,
		Name:         doc.Name,
		MIMEType:     doc.MIMEType,
		Active:       doc.IsActive,
		Sections:     doc.SectionTitles(),
		Chunks:       doc.ChunkCount(),
		FullyIndexed: doc.FullyIndexed(),
		SizeBytes:    doc.SizeBytes,
		Created:      doc.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
