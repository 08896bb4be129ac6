// Package markdown provides a Normaliser for Markdown documents.
//
// Inline syntax is removed while headings are kept as "#" lines, so the
// section detector treats them as strong heading cues. Strip and Title are
// shared with the HTML normaliser, which converts HTML to markdown first.
package markdown
