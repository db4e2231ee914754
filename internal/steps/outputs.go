package steps

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

// output is implemented by every built-in step result. The type tag lets
// a step pick the inputs it understands out of its prerequisites.
type output interface {
	outputType() string
}

// ChunkRange locates one chunk inside its content.
type ChunkRange struct {
	Index   int `json:"index"`
	Offset  int `json:"offset"`
	Length  int `json:"length"`
	Overlap int `json:"overlap,omitempty"`
}

// ChunkSet is the chunking of one content.
type ChunkSet struct {
	ContentID string          `json:"content_id"`
	Modality  domain.Modality `json:"modality"`
	Chunks    []ChunkRange    `json:"chunks"`
}

// ChunksOutput is produced by the chunk step. Only ranges are kept;
// chunk bytes are re-read from the content source when embedding.
type ChunksOutput struct {
	Type string     `json:"type"`
	Sets []ChunkSet `json:"sets"`
}

func (ChunksOutput) outputType() string { return "chunks" }

// EmbeddingsOutput is produced by the embed step.
type EmbeddingsOutput struct {
	Type       string             `json:"type"`
	Embeddings []domain.Embedding `json:"embeddings"`
	Degraded   int                `json:"degraded,omitempty"`
}

func (EmbeddingsOutput) outputType() string { return "embeddings" }

// IndexOutput is produced by the index step.
type IndexOutput struct {
	Type  string `json:"type"`
	Index string `json:"index"`
	Added int    `json:"added"`
	Count int    `json:"count"`
}

func (IndexOutput) outputType() string { return "index" }

// SavedIndexOutput is produced by the save_index step.
type SavedIndexOutput struct {
	Type  string `json:"type"`
	Index string `json:"index"`
	Key   string `json:"key"`
}

func (SavedIndexOutput) outputType() string { return "saved_index" }

// OracleResponse is the oracle's answer for one prompt.
type OracleResponse struct {
	ContentID string `json:"content_id,omitempty"`
	Response  string `json:"response"`
}

// OracleOutput is produced by the oracle step.
type OracleOutput struct {
	Type      string           `json:"type"`
	Responses []OracleResponse `json:"responses"`
}

func (OracleOutput) outputType() string { return "oracle" }

func sortedKeys(m map[string]json.RawMessage) []string {
	return slices.Sorted(maps.Keys(m))
}
