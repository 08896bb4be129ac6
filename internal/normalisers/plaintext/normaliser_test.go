package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/querynest/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	require.NotEmpty(t, mimeTypes)
	assert.Contains(t, mimeTypes, "text/plain")
	assert.Contains(t, mimeTypes, "text/csv")
	assert.Contains(t, mimeTypes, "application/json")
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 5, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	upload := &domain.Upload{
		Name:     "notes.txt",
		MIMEType: "text/plain",
		Content:  []byte("Problem Statement 1\r\nBuild a parser.\r\n"),
	}

	result, err := New().Normalise(context.Background(), upload)
	require.NoError(t, err)

	assert.Equal(t, "Problem Statement 1\nBuild a parser.\n", result.Text)
	assert.Equal(t, []int{0}, result.PageBoundaries)
	assert.Equal(t, "text/plain", result.MIMEType)
	assert.Empty(t, result.Title)
}

func TestNormalise_FormFeedsArePageBreaks(t *testing.T) {
	upload := &domain.Upload{Name: "a.txt", Content: []byte("page one\fpage two\fpage three\f")}

	result, err := New().Normalise(context.Background(), upload)
	require.NoError(t, err)

	assert.Equal(t, "page one\npage two\npage three\n", result.Text)
	require.Equal(t, []int{0, 9, 18}, result.PageBoundaries)
	assert.Equal(t, "page two", result.Text[9:17])
}

func TestNormalise_DropsByteOrderMark(t *testing.T) {
	upload := &domain.Upload{Name: "bom.txt", Content: []byte("\xef\xbb\xbfHello")}

	result, err := New().Normalise(context.Background(), upload)
	require.NoError(t, err)
	assert.Equal(t, "Hello", result.Text)
}

func TestNormalise_InvalidUTF8(t *testing.T) {
	upload := &domain.Upload{Name: "binary.txt", Content: []byte{0xff, 0xfe, 0x00, 0xc3}}

	result, err := New().Normalise(context.Background(), upload)
	assert.ErrorIs(t, err, domain.ErrCorruptFile)
	assert.Contains(t, err.Error(), "binary.txt")
	assert.Nil(t, result)
}

func TestNormalise_NilUpload(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_EmptyContent(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.Upload{Name: "empty.txt"})
	require.NoError(t, err)
	assert.Empty(t, result.Text)
	assert.Equal(t, []int{0}, result.PageBoundaries)
}

func TestSplitPages(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantText  string
		wantPages []int
	}{
		{"no breaks", "abc", "abc", []int{0}},
		{"leading break", "\fabc", "\nabc", []int{0, 1}},
		{"multibyte", "é\fü", "é\nü", []int{0, 3}},
		{"only break", "\f", "\n", []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, pages := SplitPages(tt.input)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantPages, pages)
		})
	}
}
