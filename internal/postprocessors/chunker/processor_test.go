package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// words builds n tokens "w0 w1 ..." with no sentence punctuation.
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.chunkTokens != DefaultChunkTokens {
			t.Errorf("expected chunkTokens %d, got %d", DefaultChunkTokens, p.chunkTokens)
		}
		if p.overlap != 50 {
			t.Errorf("expected overlap 50, got %d", p.overlap)
		}
		if p.slack != DefaultSlackTokens {
			t.Errorf("expected slack %d, got %d", DefaultSlackTokens, p.slack)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		p := New(WithChunkTokens(100), WithOverlapFraction(0.1), WithSlackTokens(5))
		if p.chunkTokens != 100 || p.overlap != 10 || p.slack != 5 {
			t.Errorf("unexpected config: %+v", p)
		}
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		p := New(WithChunkTokens(0), WithOverlapFraction(1.5), WithSlackTokens(-1))
		if p.chunkTokens != DefaultChunkTokens || p.overlap != 50 || p.slack != DefaultSlackTokens {
			t.Errorf("expected defaults, got %+v", p)
		}
	})

	t.Run("slack capped below overlap", func(t *testing.T) {
		p := New(WithChunkTokens(10), WithOverlapFraction(0.5), WithSlackTokens(20))
		if p.slack != 4 {
			t.Errorf("expected slack 4, got %d", p.slack)
		}
	})
}

func TestProcessor_Name(t *testing.T) {
	p := New()
	if p.Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", p.Name())
	}
}

func TestProcessor_Process_EmptyContent(t *testing.T) {
	p := New()
	for _, text := range []string{"", "   \n\t "} {
		chunks, err := p.Process(context.Background(), text, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected 0 chunks for %q, got %d", text, len(chunks))
		}
	}
}

func TestProcessor_Process_SmallContent(t *testing.T) {
	p := New(WithChunkTokens(100))
	text := "  A short section.  "

	chunks, err := p.Process(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "A short section." {
		t.Errorf("unexpected text %q", chunks[0].Text)
	}
	if chunks[0].Offset != 2 {
		t.Errorf("expected offset 2, got %d", chunks[0].Offset)
	}
	if chunks[0].ID == "" {
		t.Error("expected chunk ID")
	}
}

func TestProcessor_Process_Overlap(t *testing.T) {
	p := New(WithChunkTokens(10), WithOverlapFraction(0.2), WithSlackTokens(0))
	text := words(26)

	chunks, err := p.Process(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Windows: [0,10) [8,18) [16,26)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Text)
		cur := strings.Fields(chunks[i].Text)
		shared := prev[len(prev)-2:]
		if strings.Join(cur[:2], " ") != strings.Join(shared, " ") {
			t.Errorf("chunk %d does not overlap previous by 2 tokens: %v vs %v", i, shared, cur[:2])
		}
		if chunks[i].Position != i {
			t.Errorf("expected position %d, got %d", i, chunks[i].Position)
		}
	}
	if !strings.HasSuffix(chunks[2].Text, "w25") {
		t.Errorf("last chunk must reach the end: %q", chunks[2].Text)
	}
}

func TestProcessor_Process_OffsetsIndexSection(t *testing.T) {
	p := New(WithChunkTokens(5), WithOverlapFraction(0.2), WithSlackTokens(0))
	text := "alpha  beta\ngamma delta epsilon zeta\n\neta theta iota kappa lambda"

	chunks, err := p.Process(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range chunks {
		if text[c.Offset:c.Offset+len(c.Text)] != c.Text {
			t.Errorf("chunk text %q does not match section at offset %d", c.Text, c.Offset)
		}
	}
}

func TestProcessor_Process_SnapsToSentence(t *testing.T) {
	p := New(WithChunkTokens(10), WithOverlapFraction(0.2), WithSlackTokens(4))
	text := "one two three four five six seven. eight nine ten eleven twelve thirteen fourteen"

	chunks, err := p.Process(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks[0].Text != "one two three four five six seven." {
		t.Errorf("first chunk should end at the sentence boundary, got %q", chunks[0].Text)
	}
	// Next window starts overlap tokens before the snapped end.
	if !strings.HasPrefix(chunks[1].Text, "six seven.") {
		t.Errorf("second chunk should start with the overlap, got %q", chunks[1].Text)
	}
}

func TestProcessor_Process_NoSentenceInSlack(t *testing.T) {
	p := New(WithChunkTokens(10), WithOverlapFraction(0.2), WithSlackTokens(2))
	text := "one two three. four five six seven eight nine ten eleven twelve"

	chunks, err := p.Process(context.Background(), text, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := CountTokens(chunks[0].Text); got != 10 {
		t.Errorf("expected a full 10 token window, got %d", got)
	}
}

func TestProcessor_Process_Deterministic(t *testing.T) {
	p := New(WithChunkTokens(7))
	text := strings.Repeat("The quick brown fox jumps. ", 20)

	a, _ := p.Process(context.Background(), text, nil)
	b, _ := p.Process(context.Background(), text, nil)

	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].Offset != b[i].Offset {
			t.Errorf("chunk %d differs", i)
		}
	}
}

func TestProcessor_Process_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Process(ctx, "some text", nil)
	if err == nil {
		t.Error("expected context error")
	}
}

func TestEndsSentence(t *testing.T) {
	cases := map[string]bool{
		"end.":    true,
		"what?":   true,
		"wow!\"":  true,
		"(done.)": true,
		"mid,":    false,
		"word":    false,
		"\"":      false,
	}
	for tok, want := range cases {
		if got := endsSentence(tok); got != want {
			t.Errorf("endsSentence(%q) = %v, want %v", tok, got, want)
		}
	}
}
