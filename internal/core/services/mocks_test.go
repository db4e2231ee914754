package services

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// mockOracle is a scriptable driven.Oracle.
type mockOracle struct {
	mu       sync.Mutex
	calls    int
	prompts  []string
	failWhen func(call int, prompt string) bool
	block    bool
	response string
}

func (m *mockOracle) Infer(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.prompts = append(m.prompts, prompt)
	fail := m.failWhen != nil && m.failWhen(call, prompt)
	block := m.block
	m.mu.Unlock()

	if block {
		// Ignores ctx on purpose: the generator must not wait on it.
		time.Sleep(time.Hour)
	}
	if fail {
		return "", errors.New("oracle unavailable")
	}
	if m.response != "" {
		return m.response, nil
	}
	return "description of " + prompt[len(prompt)-min(len(prompt), 32):], nil
}

func (m *mockOracle) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockOracle) ModelName() string           { return "mock-oracle" }
func (m *mockOracle) Ping(_ context.Context) error { return nil }
func (m *mockOracle) Close() error                 { return nil }

// mockEmbedder hashes words into a small vector.
type mockEmbedder struct {
	dims int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dims := m.dims
	if dims == 0 {
		dims = 16
	}
	vec := make([]float32, dims)
	for _, w := range strings.Fields(text) {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}
	return vec, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = m.Embed(ctx, t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) ModelName() string            { return "mock-embedder" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockPromptStore serves fixed templates.
type mockPromptStore struct {
	templates map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	t, ok := m.templates[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return t, nil
}

func (m *mockPromptStore) Reload() {}

var (
	_ driven.Oracle       = (*mockOracle)(nil)
	_ driven.TextEmbedder = (*mockEmbedder)(nil)
	_ driven.PromptStore  = (*mockPromptStore)(nil)
)
