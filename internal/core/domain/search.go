package domain

import (
	"fmt"
	"strings"
)

// DefaultQueryLimit is the number of results returned when a query sets none.
const DefaultQueryLimit = 10

// Query is a free-text search against a named index.
type Query struct {
	// Index names the vector index to search.
	Index string `json:"index"`

	// Text is embedded with the query prompt and fused like any content.
	Text string `json:"text"`

	// Modality selects the structural features applied to Text.
	Modality Modality `json:"modality,omitempty"`

	// Limit is the maximum number of results.
	Limit int `json:"limit,omitempty"`

	// Filter keeps hits whose metadata equals every pair.
	Filter map[string]string `json:"filter,omitempty"`

	// MaxDistance drops hits further away. Zero disables the cutoff.
	MaxDistance float32 `json:"max_distance,omitempty"`
}

// Validate checks the query and fills defaults.
func (q *Query) Validate() error {
	if q.Index == "" {
		return fmt.Errorf("%w: query needs an index", ErrValidation)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty query", ErrValidation)
	}
	if q.Modality == "" {
		q.Modality = ModalityText
	}
	if !q.Modality.IsValid() {
		return fmt.Errorf("%w: modality %q", ErrUnsupportedType, q.Modality)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrValidation)
	}
	if q.Limit == 0 {
		q.Limit = DefaultQueryLimit
	}
	return nil
}

// SearchResult is one hit hydrated with a snippet of its source content.
type SearchResult struct {
	// ID is the index item ID: a chunk ID (content#index) or a content ID.
	ID string `json:"id"`

	// ContentID is the content the hit was embedded from.
	ContentID string `json:"content_id"`

	// Distance is the metric distance to the query; smaller is closer.
	Distance float32 `json:"distance"`

	// Snippet is the start of the matched chunk or content.
	Snippet string `json:"snippet,omitempty"`

	// Degraded reports that the stored vector is structural-only.
	Degraded bool `json:"degraded,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// SearchResponse is the answer to a Query.
type SearchResponse struct {
	Results []SearchResult `json:"results"`

	// QueryDegraded reports that the query vector is structural-only.
	QueryDegraded bool `json:"query_degraded,omitempty"`
}
