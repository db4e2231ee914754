// Package normalisers extracts plain text from document formats such as
// HTML, Word documents and email, so that they can be embedded as text.
//
// Normalisers are registered with a Registry, which the filesystem loader
// consults by file extension.
package normalisers
