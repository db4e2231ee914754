package filesystem

import (
	"fmt"
	"path/filepath"
	"strings"
)

const fileScheme = "file://"

// ContentID returns the content ID of a local file: a file:// URI of its
// cleaned absolute path.
func ContentID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return fileScheme + filepath.ToSlash(abs), nil
}

// ResolvePath converts a content ID back to a local path for opening.
// Handles file:// URIs and bare paths.
func ResolvePath(id string) string {
	if strings.HasPrefix(id, fileScheme) {
		return filepath.FromSlash(strings.TrimPrefix(id, fileScheme))
	}
	// Bare paths pass through unchanged
	return id
}
