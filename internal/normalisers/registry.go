package normalisers

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/querynest/internal/core/domain"
	"github.com/custodia-labs/querynest/internal/core/ports/driven"
	"github.com/custodia-labs/querynest/internal/logger"
	"github.com/custodia-labs/querynest/internal/normalisers/docx"
	"github.com/custodia-labs/querynest/internal/normalisers/html"
	"github.com/custodia-labs/querynest/internal/normalisers/markdown"
	"github.com/custodia-labs/querynest/internal/normalisers/pdf"
	"github.com/custodia-labs/querynest/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

const (
	mimeDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePlainText = "text/plain"
)

// extensionTypes maps lower-case file extensions to MIME types.
var extensionTypes = map[string]string{
	".txt":      mimePlainText,
	".text":     mimePlainText,
	".log":      mimePlainText,
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".pdf":      "application/pdf",
	".docx":     mimeDOCX,
	".csv":      "text/csv",
	".json":     "application/json",
	".xml":      "application/xml",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".java":     "text/x-java",
	".c":        "text/x-c",
	".h":        "text/x-c",
	".cpp":      "text/x-c++",
	".rb":       "text/x-ruby",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
	".js":       "text/javascript",
	".ts":       "text/typescript",
	".css":      "text/css",
}

// Registry dispatches uploads to the highest priority normaliser for
// their MIME type.
type Registry struct {
	mu          sync.RWMutex
	normalisers map[string][]driven.Normaliser
}

// NewRegistry creates an empty normaliser registry.
func NewRegistry() *Registry {
	return &Registry{
		normalisers: make(map[string][]driven.Normaliser),
	}
}

// RegisterDefaults adds the built-in normalisers.
func RegisterDefaults(r *Registry) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pdf.New())
}

// Register adds a normaliser for each of its MIME types.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mt := range n.SupportedMIMETypes() {
		list := append(r.normalisers[mt], n)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.normalisers[mt] = list
	}
}

// SupportedMIMETypes returns every registered MIME type, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.normalisers))
	for mt := range r.normalisers {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// SupportsFile reports whether a file with this name has a normaliser,
// judging by its extension alone.
func (r *Registry) SupportsFile(name string) bool {
	mt, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return false
	}
	return r.lookup(mt) != nil
}

// Normalise detects the upload's MIME type and runs the best normaliser.
// The upload itself is not modified.
func (r *Registry) Normalise(ctx context.Context, upload *domain.Upload) (*driven.NormaliseResult, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	mimeType := DetectMIMEType(upload.Name, upload.MIMEType, upload.Content)
	n := r.lookup(mimeType)
	if n == nil {
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedFormat, upload.Name, mimeType)
	}
	logger.Debug("Normalising %s as %s with %T", upload.Name, mimeType, n)

	detected := *upload
	detected.MIMEType = mimeType
	result, err := n.Normalise(ctx, &detected)
	if err != nil {
		return nil, err
	}
	result.MIMEType = mimeType
	if len(result.PageBoundaries) == 0 {
		result.PageBoundaries = []int{0}
	}
	return result, nil
}

// lookup returns the preferred normaliser for mimeType. Unknown text/*
// types fall back to the plain text normaliser.
func (r *Registry) lookup(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if list := r.normalisers[mimeType]; len(list) > 0 {
		return list[0]
	}
	if strings.HasPrefix(mimeType, "text/") {
		if list := r.normalisers[mimePlainText]; len(list) > 0 {
			return list[0]
		}
	}
	return nil
}

// DetectMIMEType resolves an upload's type from its declared type, then
// its file extension, then its content.
func DetectMIMEType(name, declared string, content []byte) string {
	if mt := baseType(declared); mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return sniff(content)
}

// sniff inspects magic bytes. ZIP archives are only reported as DOCX when
// they contain a Word document part.
func sniff(content []byte) string {
	switch {
	case bytes.HasPrefix(content, []byte("%PDF-")):
		return "application/pdf"
	case bytes.HasPrefix(content, []byte("PK\x03\x04")):
		if isWordArchive(content) {
			return mimeDOCX
		}
		return "application/zip"
	}
	return baseType(http.DetectContentType(content))
}

func isWordArchive(content []byte) bool {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return false
	}
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			return true
		}
	}
	return false
}

// baseType drops parameters such as "; charset=utf-8".
func baseType(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
