package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// Modality tags what kind of bytes a Content carries.
type Modality string

// Supported modalities.
const (
	// ModalityText is prose, markdown and other natural-language text.
	ModalityText Modality = "text"

	// ModalityCode is source code in any programming language.
	ModalityCode Modality = "code"

	// ModalityStructured is structured domain data (JSON, CSV, YAML, records).
	ModalityStructured Modality = "structured"
)

// IsValid returns true if the modality is recognised.
func (m Modality) IsValid() bool {
	switch m {
	case ModalityText, ModalityCode, ModalityStructured:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m Modality) String() string {
	return string(m)
}

// Description returns a human-readable description of the modality.
func (m Modality) Description() string {
	switch m {
	case ModalityText:
		return "Text (natural language)"
	case ModalityCode:
		return "Code (source files)"
	case ModalityStructured:
		return "Structured (records and schemas)"
	default:
		return unknownDescription
	}
}

// Content is an immutable payload owned by the caller.
// The core only borrows it for chunking and embedding.
type Content struct {
	// ID uniquely identifies the content.
	ID string

	// Modality tags the payload type.
	Modality Modality

	// Data is the raw payload. It must not be modified once handed to the core.
	Data []byte

	// Metadata is free-form key/value data carried through to index entries.
	Metadata map[string]string

	// CreatedAt is when the content was first created.
	CreatedAt time.Time

	// UpdatedAt is when the content was last modified.
	UpdatedAt time.Time
}

// Input returns the content as a generator input.
func (c *Content) Input() EmbeddingInput {
	return EmbeddingInput{
		ContentID: c.ID,
		Modality:  c.Modality,
		Data:      c.Data,
		Metadata:  c.Metadata,
	}
}

// ContentChunk is a bounded view into a Content.
// Data aliases the parent's buffer, so a chunk never outlives its content.
type ContentChunk struct {
	// ContentID is the parent content.
	ContentID string

	// Modality is inherited from the parent content.
	Modality Modality

	// Index is the zero-based position of this chunk in the sequence.
	Index int

	// Offset is the byte offset of the chunk within the content.
	Offset int

	// Length is the number of bytes in the chunk.
	Length int

	// Overlap is the number of leading bytes shared with the previous chunk.
	Overlap int

	// Data is the chunk's bytes.
	Data []byte
}

// End returns the exclusive end offset of the chunk.
func (c ContentChunk) End() int {
	return c.Offset + c.Length
}

// ID returns a stable identifier derived from the parent and position.
func (c ContentChunk) ID() string {
	return fmt.Sprintf("%s#%d", c.ContentID, c.Index)
}

// Input returns the chunk as a generator input.
func (c ContentChunk) Input() EmbeddingInput {
	return EmbeddingInput{
		ContentID: c.ContentID,
		Modality:  c.Modality,
		Data:      c.Data,
		Metadata: map[string]string{
			"chunk_index":  fmt.Sprint(c.Index),
			"chunk_offset": fmt.Sprint(c.Offset),
		},
	}
}

// BoundaryPolicy decides where a chunk may end.
type BoundaryPolicy string

// Available boundary policies.
const (
	// BoundaryByte cuts at exact byte positions.
	BoundaryByte BoundaryPolicy = "byte"

	// BoundaryStructure avoids splitting mid-token (text) or mid-line (code, structured).
	BoundaryStructure BoundaryPolicy = "structure"
)

// IsValid returns true if the boundary policy is recognised.
func (b BoundaryPolicy) IsValid() bool {
	return b == BoundaryByte || b == BoundaryStructure
}

// ChunkStrategy configures the chunker.
type ChunkStrategy struct {
	// Size is the target chunk size in bytes.
	Size int

	// Overlap is how many bytes each chunk shares with its predecessor.
	Overlap int

	// Boundary selects byte- or structure-aligned cuts.
	Boundary BoundaryPolicy
}

// Validate checks the strategy is usable.
func (s ChunkStrategy) Validate() error {
	if s.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrValidation, s.Size)
	}
	if s.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrValidation, s.Overlap)
	}
	if s.Overlap >= s.Size {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			ErrValidation, s.Overlap, s.Size)
	}
	if s.Boundary != "" && !s.Boundary.IsValid() {
		return fmt.Errorf("%w: unknown boundary policy %q", ErrValidation, s.Boundary)
	}
	return nil
}

// Default chunking parameters.
const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 128
)

// DefaultChunkStrategy returns the chunk policy for a modality.
// Text and code keep tokens and lines whole; structured data is cut on bytes.
func DefaultChunkStrategy(m Modality) ChunkStrategy {
	boundary := BoundaryStructure
	if m == ModalityStructured {
		boundary = BoundaryByte
	}
	return ChunkStrategy{
		Size:     DefaultChunkSize,
		Overlap:  DefaultChunkOverlap,
		Boundary: boundary,
	}
}
