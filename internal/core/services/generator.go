package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/core/ports/driving"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// Ensure Generator implements the interface.
var _ driving.EmbeddingGenerator = (*Generator)(nil)

// fallbackPrompt is used when no prompt store is configured.
const fallbackPrompt = "Describe the meaning and purpose of the following %s in a few sentences.\n\n%%s"

// Generator produces fused embeddings from a structural feature vector and a
// semantic vector derived from the oracle's description of the content.
type Generator struct {
	cfg      domain.GeneratorConfig
	fusion   *fuser
	oracle   driven.Oracle
	embedder driven.TextEmbedder
	prompts  driven.PromptStore
	cache    *lru.Cache[string, []float32]
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithPromptStore sets user-editable prompt templates.
func WithPromptStore(store driven.PromptStore) GeneratorOption {
	return func(g *Generator) {
		g.prompts = store
	}
}

// NewGenerator creates an embedding generator.
// The oracle and embedder are optional; without either, every content or
// chunk embedding is structural-only and marked degraded.
func NewGenerator(
	cfg domain.GeneratorConfig,
	oracle driven.Oracle,
	embedder driven.TextEmbedder,
	opts ...GeneratorOption,
) (*Generator, error) {
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = domain.DefaultOracleTimeout
	}
	if cfg.PromptBudget <= 0 {
		cfg.PromptBudget = domain.DefaultPromptBudget
	}

	f, err := newFuser(cfg)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:      cfg,
		fusion:   f,
		oracle:   oracle,
		embedder: embedder,
	}
	for _, opt := range opts {
		opt(g)
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create embedding cache: %w", err)
		}
		g.cache = cache
	}
	return g, nil
}

// Dimension returns the length of every produced vector.
func (g *Generator) Dimension() int {
	return g.cfg.Dimension
}

// Generate embeds a content or chunk.
func (g *Generator) Generate(
	ctx context.Context,
	in domain.EmbeddingInput,
	kind domain.EmbeddingKind,
) (*domain.Embedding, error) {
	if !kind.IsValid() || kind == domain.EmbeddingQuery {
		return nil, fmt.Errorf("%w: embedding kind %q", domain.ErrValidation, kind)
	}
	if in.Modality == "" {
		in.Modality = domain.ModalityText
	}
	if !in.Modality.IsValid() {
		return nil, fmt.Errorf("%w: modality %q", domain.ErrValidation, in.Modality)
	}

	emb := g.newEmbedding(in.ContentID, kind, in.Metadata)

	if kind == domain.EmbeddingFeature {
		emb.Vector = structuralVector(in, g.cfg.Dimension)
		emb.Dimension = len(emb.Vector)
		return emb, nil
	}

	g.fill(ctx, emb, in, promptName(in.Modality))
	return emb, nil
}

// GenerateQuery embeds query text for search.
func (g *Generator) GenerateQuery(
	ctx context.Context,
	text string,
	modality domain.Modality,
) (*domain.Embedding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrValidation)
	}
	if modality == "" {
		modality = domain.ModalityText
	}
	if !modality.IsValid() {
		return nil, fmt.Errorf("%w: modality %q", domain.ErrValidation, modality)
	}

	in := domain.EmbeddingInput{Modality: modality, Data: []byte(text)}
	emb := g.newEmbedding("", domain.EmbeddingQuery, nil)
	g.fill(ctx, emb, in, driven.PromptDescribeQuery)
	return emb, nil
}

// fill computes and fuses both vectors into emb, degrading on semantic failure.
func (g *Generator) fill(ctx context.Context, emb *domain.Embedding, in domain.EmbeddingInput, prompt string) {
	key := cacheKey(emb.Kind, in)
	if g.cache != nil {
		if vec, ok := g.cache.Get(key); ok {
			emb.Vector = append([]float32(nil), vec...)
			emb.Dimension = len(vec)
			return
		}
	}

	structural := structuralVector(in, g.fusion.structuralDim())
	semantic, err := g.semantic(ctx, prompt, in)
	if err != nil {
		emb.Vector = g.fusion.fuse(structural, nil)
		emb.Dimension = len(emb.Vector)
		emb.Degraded = true
		emb.DegradedReason = err.Error()
		if !errors.Is(err, domain.ErrOracleUnavailable) {
			logger.Warn("generator: degraded %s embedding for %q: %v", emb.Kind, in.ContentID, err)
		}
		return
	}

	emb.Vector = g.fusion.fuse(structural, semantic)
	emb.Dimension = len(emb.Vector)
	if g.cache != nil {
		g.cache.Add(key, append([]float32(nil), emb.Vector...))
	}
}

// semantic asks the oracle to describe the input and embeds the description.
// Every failure is reported as domain.ErrOracle.
func (g *Generator) semantic(ctx context.Context, promptName string, in domain.EmbeddingInput) ([]float32, error) {
	if g.oracle == nil || g.embedder == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrOracle, domain.ErrOracleUnavailable)
	}

	prompt := strings.Replace(g.template(promptName, in.Modality), "%s", truncateUTF8(in.Data, g.cfg.PromptBudget), 1)

	var (
		description string
		err         error
	)
	for attempt := 0; attempt < 2; attempt++ {
		description, err = withTimeout(ctx, g.cfg.OracleTimeout, func(ctx context.Context) (string, error) {
			return g.oracle.Infer(ctx, prompt)
		})
		if err == nil && strings.TrimSpace(description) == "" {
			err = errors.New("empty response")
		}
		if err == nil || ctx.Err() != nil {
			break
		}
		logger.Debug("generator: oracle attempt %d failed: %v", attempt+1, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: infer: %w", domain.ErrOracle, err)
	}

	vec, err := withTimeout(ctx, g.cfg.OracleTimeout, func(ctx context.Context) ([]float32, error) {
		return g.embedder.Embed(ctx, description)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embed description: %w", domain.ErrOracle, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: embed description: empty vector", domain.ErrOracle)
	}
	return vec, nil
}

func (g *Generator) template(name string, modality domain.Modality) string {
	if g.prompts != nil {
		tmpl, err := g.prompts.Load(name)
		if err == nil && strings.Count(tmpl, "%s") == 1 {
			return tmpl
		}
		logger.Debug("generator: prompt %s unavailable, using fallback", name)
	}
	return fmt.Sprintf(fallbackPrompt, modality)
}

func (g *Generator) newEmbedding(contentID string, kind domain.EmbeddingKind, metadata map[string]string) *domain.Embedding {
	md := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		md[k] = v
	}
	md["kind"] = string(kind)
	if contentID != "" {
		md["content_id"] = contentID
	}
	return &domain.Embedding{
		ID:        uuid.NewString(),
		ContentID: contentID,
		Kind:      kind,
		Metadata:  md,
		CreatedAt: time.Now(),
	}
}

func promptName(m domain.Modality) string {
	switch m {
	case domain.ModalityCode:
		return driven.PromptDescribeCode
	case domain.ModalityStructured:
		return driven.PromptDescribeStructured
	default:
		return driven.PromptDescribeText
	}
}

func cacheKey(kind domain.EmbeddingKind, in domain.EmbeddingInput) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(in.Modality))
	h.Write([]byte{0})
	h.Write(in.Data)
	return hex.EncodeToString(h.Sum(nil))
}

// truncateUTF8 returns at most n bytes of data without splitting a rune.
func truncateUTF8(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return string(data[:cut])
}

// withTimeout runs fn under a deadline and returns when the deadline passes
// even if fn ignores its context.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
