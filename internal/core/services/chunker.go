package services

import (
	"fmt"
	"iter"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
)

// Ensure Chunker implements the interface.
var _ driving.Chunker = (*Chunker)(nil)

// Chunker splits content into overlapping windows.
//
// Chunks advance by Size-Overlap bytes. With the structure boundary, a
// window's end is pulled back to the last whitespace (text) or newline
// (code, structured) but never to or below offset+Overlap, so every chunk
// makes progress. The final chunk ends exactly at the end of the content.
type Chunker struct{}

// NewChunker creates a chunker.
func NewChunker() *Chunker {
	return &Chunker{}
}

// Chunk validates the strategy and returns a lazy chunk sequence.
// Ranging over the sequence again restarts from the first chunk.
func (c *Chunker) Chunk(content *domain.Content, strategy domain.ChunkStrategy) (iter.Seq[domain.ContentChunk], error) {
	if content == nil {
		return nil, fmt.Errorf("%w: nil content", domain.ErrValidation)
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	if strategy.Boundary == "" {
		strategy.Boundary = domain.BoundaryByte
	}

	data := content.Data
	return func(yield func(domain.ContentChunk) bool) {
		n := len(data)
		offset, prevEnd := 0, 0
		for index := 0; offset < n; index++ {
			end := min(offset+strategy.Size, n)
			if end < n && strategy.Boundary == domain.BoundaryStructure {
				end = alignEnd(data, offset+strategy.Overlap+1, end, content.Modality)
			}

			overlap := 0
			if index > 0 {
				overlap = prevEnd - offset
			}

			chunk := domain.ContentChunk{
				ContentID: content.ID,
				Modality:  content.Modality,
				Index:     index,
				Offset:    offset,
				Length:    end - offset,
				Overlap:   overlap,
				Data:      data[offset:end:end],
			}
			if !yield(chunk) || end == n {
				return
			}

			prevEnd = end
			offset = end - strategy.Overlap
		}
	}, nil
}

// alignEnd moves end back to the closest cut in [floor, end] that does not
// split a token (text) or a line (code, structured). It returns end
// unchanged if no such cut exists.
func alignEnd(data []byte, floor, end int, modality domain.Modality) int {
	lineOnly := modality == domain.ModalityCode || modality == domain.ModalityStructured
	for i := end; i >= floor && i > 0; i-- {
		if data[i-1] == '\n' {
			return i
		}
		if !lineOnly && (isSpace(data[i-1]) || (i < len(data) && isSpace(data[i]))) {
			return i
		}
	}
	return end
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
