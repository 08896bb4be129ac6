// Package plaintext provides the fallback Normaliser for text files.
//
// Form feed characters are treated as page breaks. Content that is not
// valid UTF-8 fails with domain.ErrCorruptFile.
package plaintext
