// Package html provides a Normaliser implementation for HTML documents.
//
// Pages are parsed with golang.org/x/net/html, trimmed to their main
// content area and converted to markdown with html-to-markdown. The
// markdown normaliser's rules then produce plain text with headings kept
// as "#" lines.
package html
