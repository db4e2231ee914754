package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".boltindex", "config.toml"), store.Path())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("name", "docs"))
	require.NoError(t, store.Set("workers", 4))
	require.NoError(t, store.Set("weight", 0.25))
	require.NoError(t, store.Set("hybrid", true))
	require.NoError(t, store.Set("tags", []string{"a", "b"}))

	assert.Equal(t, "docs", store.GetString("name"))
	assert.Equal(t, 4, store.GetInt("workers"))
	assert.Equal(t, 4.0, store.GetFloat("workers"))
	assert.Equal(t, 0.25, store.GetFloat("weight"))
	assert.True(t, store.GetBool("hybrid"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("tags"))

	// Wrong types read as zero values.
	assert.Equal(t, 0, store.GetInt("name"))
	assert.Equal(t, 0.0, store.GetFloat("name"))
	assert.Equal(t, "", store.GetString("workers"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_NestedKeysRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("index.hnsw.m", 16))
	require.NoError(t, store.Set("index.metric", "cosine"))
	require.NoError(t, store.Set("generator.alpha", 0.5))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[index.hnsw]")

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 16, reloaded.GetInt("index.hnsw.m"))
	assert.Equal(t, "cosine", reloaded.GetString("index.metric"))
	assert.Equal(t, 0.5, reloaded.GetFloat("generator.alpha"))
}

func TestConfigStore_LoadFromHandWrittenTOML(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte(`
[storage]
backend = "memory"

[engine]
workers = 8
checkpoint_interval = "30s"
`)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), content, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "memory", store.GetString("storage.backend"))
	assert.Equal(t, 8, store.GetInt("engine.workers"))
	assert.Equal(t, "30s", store.GetString("engine.checkpoint_interval"))
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not toml {{[["), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), nil, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("anything")
	assert.False(t, ok)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("oracle.api_key", "secret"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("engine.workers", i)
		}()
		go func() {
			defer wg.Done()
			_ = store.GetInt("engine.workers")
		}()
	}
	wg.Wait()

	_, ok := store.Get("engine.workers")
	assert.True(t, ok)
}

func TestNestMap(t *testing.T) {
	nested := nestMap(map[string]any{
		"a.b.c": 1,
		"a.d":   "x",
		"e":     true,
	})

	assert.Equal(t, map[string]any{
		"a": map[string]any{
			"b": map[string]any{"c": 1},
			"d": "x",
		},
		"e": true,
	}, nested)
	assert.Equal(t, map[string]any{"a.b.c": 1, "a.d": "x", "e": true}, flattenMap(nested, ""))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "BOLTINDEX_INDEX_HNSW_M", EnvKey("index.hnsw.m"))
	assert.Equal(t, "BOLTINDEX_STORAGE_DATA_DIR", EnvKey("storage.data_dir"))
	assert.Equal(t, "BOLTINDEX_ORACLE_API_KEY", EnvKey("oracle.api-key"))
}

func TestConfigStore_EnvironmentOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, store.Set("engine.workers", 2))
	require.NoError(t, store.Set("storage.backend", "sqlite"))

	t.Setenv("BOLTINDEX_ENGINE_WORKERS", "12")
	t.Setenv("BOLTINDEX_INDEX_HYBRID_ENABLED", "true")
	t.Setenv("BOLTINDEX_GENERATOR_STRUCTURAL_WEIGHT", "0.3")

	assert.Equal(t, 12, store.GetInt("engine.workers"))
	assert.True(t, store.GetBool("index.hybrid.enabled"))
	assert.InDelta(t, 0.3, store.GetFloat("generator.structural_weight"), 1e-9)
	assert.Equal(t, "sqlite", store.GetString("storage.backend"))

	v, ok := store.Get("engine.workers")
	require.True(t, ok)
	assert.Equal(t, "12", v)

	// Overrides are never persisted.
	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "12")
	assert.NotContains(t, string(raw), "hybrid")
}
