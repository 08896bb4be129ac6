// Package pdf provides a Normaliser for PDF documents backed by
// github.com/ledongthuc/pdf. Files the parser cannot open fail with
// domain.ErrCorruptFile.
package pdf
