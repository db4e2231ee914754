package driven

import (
	"context"
)

// Normaliser extracts plain text from one document format.
type Normaliser interface {
	// Extensions returns the lower-case file extensions handled, with the dot.
	Extensions() []string

	// Normalise converts a document to text. name is the file name and
	// serves as the title when the document has none.
	// Malformed documents fail with domain.ErrUnsupportedType.
	Normalise(ctx context.Context, name string, data []byte) (*NormaliseResult, error)
}

// NormaliseResult is the text extracted from a document.
type NormaliseResult struct {
	Text   []byte
	Title  string
	Format string

	// Metadata holds format-specific fields such as email headers.
	Metadata map[string]string
}
