package memory

import (
	"maps"
	"sync"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/config/values"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in a map. Nothing is persisted.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore creates a config store seeded with the given values.
func NewConfigStore(seed ...map[string]any) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any)}
	for _, m := range seed {
		maps.Copy(s.values, m)
	}
	return s
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) value(key string) any {
	v, _ := s.Get(key)
	return v
}

// GetString returns the value when it is a string.
func (s *ConfigStore) GetString(key string) string { return values.String(s.value(key)) }

// GetInt returns the value as an int, parsing strings.
func (s *ConfigStore) GetInt(key string) int { return values.Int(s.value(key)) }

// GetFloat returns the value as a float64, parsing strings.
func (s *ConfigStore) GetFloat(key string) float64 { return values.Float(s.value(key)) }

// GetBool returns the value as a bool, parsing strings.
func (s *ConfigStore) GetBool(key string) bool { return values.Bool(s.value(key)) }

// GetStringSlice returns the value as strings, splitting comma lists.
func (s *ConfigStore) GetStringSlice(key string) []string {
	return values.StringSlice(s.value(key))
}

// Set stores a configuration value.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Save is a no-op.
func (s *ConfigStore) Save() error { return nil }

// Load is a no-op.
func (s *ConfigStore) Load() error { return nil }

// Path returns ":memory:".
func (s *ConfigStore) Path() string { return ":memory:" }
