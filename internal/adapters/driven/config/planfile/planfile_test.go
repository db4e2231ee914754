package planfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/boltindex/internal/core/domain"
)

const ingestPlan = `
name: Ingest notes
steps:
  - id: chunk
    kind: chunk
    params:
      content_ids: [notes.md, main.go]
      size: 256
  - id: embed
    kind: embed
    depends_on: [chunk]
    requires:
      embedding: 1
  - id: index
    kind: index
    max_retries: 5
    params:
      index: docs
dependencies:
  index: [embed]
`

func TestParse(t *testing.T) {
	plan, err := Parse([]byte(ingestPlan), "ingest")
	require.NoError(t, err)

	assert.Equal(t, "ingest", plan.ID)
	assert.Equal(t, "Ingest notes", plan.Name)
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, []string{"chunk"}, plan.Prerequisites("embed"))
	assert.Equal(t, []string{"embed"}, plan.Prerequisites("index"))
	assert.Empty(t, plan.Prerequisites("chunk"))

	assert.Equal(t, []any{"notes.md", "main.go"}, plan.Steps[0].Params["content_ids"])
	assert.Equal(t, 256, plan.Steps[0].Params["size"])
	assert.Equal(t, domain.Requirements{domain.ResourceEmbedding: 1}, plan.Steps[1].Requires)
	require.NotNil(t, plan.Steps[2].MaxRetries)
	assert.Equal(t, 5, *plan.Steps[2].MaxRetries)
}

func TestParse_Linear(t *testing.T) {
	plan, err := Parse([]byte(`
id: lin
linear: true
steps:
  - {id: a, kind: chunk}
  - {id: b, kind: embed}
  - {id: c, kind: index, depends_on: [a]}
`), "unused")
	require.NoError(t, err)

	assert.Equal(t, "lin", plan.ID)
	assert.Equal(t, []string{"a"}, plan.Prerequisites("b"))
	assert.Equal(t, []string{"a"}, plan.Prerequisites("c"))
}

func TestParse_JSON(t *testing.T) {
	plan, err := Parse([]byte(`{"id":"j","steps":[{"id":"a","kind":"oracle"}]}`), "")
	require.NoError(t, err)
	assert.Equal(t, "j", plan.ID)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "steps: [unterminated"},
		{"no steps", "id: x"},
		{"unknown dependency", "id: x\nsteps:\n  - {id: a, kind: chunk, depends_on: [ghost]}"},
		{"cycle", "id: x\nsteps:\n  - {id: a, kind: chunk, depends_on: [b]}\n  - {id: b, kind: chunk, depends_on: [a]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), "x")
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nightly.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ingestPlan), 0o600))

	plan, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nightly", plan.ID)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans", "saved.yaml")
	plan := domain.LinearPlan("saved",
		domain.ProcessStep{ID: "chunk", Kind: "chunk", Params: map[string]any{"content_ids": []string{"a"}}},
		domain.ProcessStep{ID: "embed", Kind: "embed"},
	)
	require.NoError(t, Save(path, plan))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, loaded.ID)
	assert.Equal(t, []string{"chunk"}, loaded.Prerequisites("embed"))
	assert.Equal(t, []any{"a"}, loaded.Steps[0].Params["content_ids"])
}
