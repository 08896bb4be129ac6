// Package normalisers provides implementations of the Normaliser interface
// for various document formats. Each normaliser knows how to extract text
// content from a specific MIME type.
//
// Registry implements the NormaliserRegistry port. It resolves an upload's
// MIME type from its declared type, its extension and finally its content,
// then hands it to the highest priority normaliser for that type. Uploads
// no normaliser accepts fail with domain.ErrUnsupportedFormat.
package normalisers
