// Package docx provides a Normaliser for Word (.docx) documents.
//
// The archive's word/document.xml is streamed paragraph by paragraph.
// Archives that cannot be opened, or that lack the document part, fail
// with domain.ErrCorruptFile.
package docx
