package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// snippetBytes bounds the content excerpt attached to each result.
const snippetBytes = 240

// SearchService embeds query text and searches named indexes.
type SearchService struct {
	generator driving.EmbeddingGenerator
	indexes   driving.IndexService
	contents  driven.ContentSource

	// openMu serialises loading indexes that are not yet open.
	openMu sync.Mutex
}

// NewSearchService creates a search service.
// The content source is optional; without it results carry no snippet.
func NewSearchService(
	generator driving.EmbeddingGenerator,
	indexes driving.IndexService,
	contents driven.ContentSource,
) *SearchService {
	return &SearchService{
		generator: generator,
		indexes:   indexes,
		contents:  contents,
	}
}

// Search embeds the query text, searches the index and hydrates snippets.
func (s *SearchService) Search(ctx context.Context, q domain.Query) (*domain.SearchResponse, error) {
	logger.Section("Search Execution")
	if err := q.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Query: %q index=%s limit=%d", q.Text, q.Index, q.Limit)

	if err := s.ensureOpen(ctx, q.Index); err != nil {
		return nil, err
	}

	emb, err := s.generator.GenerateQuery(ctx, q.Text, q.Modality)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if emb.Degraded {
		logger.Debug("Query embedding degraded: %s", emb.DegradedReason)
	}

	opts := domain.SearchOptions{K: q.Limit, MaxDistance: q.MaxDistance}
	if len(q.Filter) > 0 {
		opts.Filter = &domain.MetadataFilter{Equals: q.Filter}
	}
	hits, err := s.indexes.SearchEmbedding(ctx, q.Index, emb, opts)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Index, err)
	}

	resp := &domain.SearchResponse{
		Results:       make([]domain.SearchResult, 0, len(hits)),
		QueryDegraded: emb.Degraded,
	}
	loaded := make(map[string]*domain.Content)
	for _, hit := range hits {
		resp.Results = append(resp.Results, s.hydrate(ctx, hit, loaded))
	}
	logger.Info("Search %s returned %d results", q.Index, len(resp.Results))
	return resp, nil
}

// ensureOpen loads an index from its default key when it is not open.
func (s *SearchService) ensureOpen(ctx context.Context, name string) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	if slices.Contains(s.indexes.Names(), name) {
		return nil
	}
	if err := s.indexes.Load(ctx, name, domain.IndexKey(name)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: index %s", domain.ErrNotFound, name)
		}
		return fmt.Errorf("load index %s: %w", name, err)
	}
	logger.Debug("Loaded index %s from %s", name, domain.IndexKey(name))
	return nil
}

// hydrate resolves a hit's content and cuts a snippet at the chunk offset.
// Missing content leaves the snippet empty.
func (s *SearchService) hydrate(ctx context.Context, hit domain.SearchHit, loaded map[string]*domain.Content) domain.SearchResult {
	res := domain.SearchResult{
		ID:        hit.ID,
		ContentID: hit.Metadata["content_id"],
		Distance:  hit.Distance,
		Degraded:  hit.Metadata["degraded"] == "true",
		Metadata:  hit.Metadata,
	}
	if res.ContentID == "" || s.contents == nil {
		return res
	}

	c, ok := loaded[res.ContentID]
	if !ok {
		var err error
		c, err = s.contents.Open(ctx, res.ContentID)
		if err != nil {
			logger.Debug("No content for hit %s: %v", hit.ID, err)
		}
		loaded[res.ContentID] = c
	}
	if c == nil {
		return res
	}

	offset, _ := strconv.Atoi(hit.Metadata["chunk_offset"])
	if offset < 0 || offset > len(c.Data) {
		offset = 0
	}
	res.Snippet = strings.TrimSpace(truncateUTF8(c.Data[offset:], snippetBytes))
	return res
}
