package driven

// ConfigStore holds settings under dotted keys such as "index.hnsw.m".
//
// Typed getters convert loosely: numeric strings parse as numbers, "true"
// parses as a bool and comma-separated strings split into slices. A
// missing or unconvertible value reads as the zero value; use Get to tell
// the two apart.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set stores a value. Persistent stores write through immediately.
	Set(key string, value any) error

	// Save persists the current configuration.
	Save() error

	// Load rereads configuration from storage, discarding unsaved values.
	Load() error

	// Path locates the backing file, or describes the store.
	Path() string
}
