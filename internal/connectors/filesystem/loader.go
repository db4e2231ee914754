// Package filesystem loads local files as ingestible content and watches
// directories for changes.
package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
	"github.com/custodia-labs/boltindex/internal/logger"
)

// DefaultMaxFileSize is the largest file loaded unless overridden.
const DefaultMaxFileSize = 4 << 20

// sniffLen is how many leading bytes are checked for binary content.
const sniffLen = 8 << 10

// Extensions per modality. Anything else is text.
var (
	codeExtensions = map[string]bool{
		".go": true, ".py": true, ".js": true, ".ts": true, ".rs": true,
		".java": true, ".c": true, ".h": true, ".cpp": true, ".rb": true,
		".sh": true, ".sql": true, ".kt": true, ".swift": true,
	}
	structuredExtensions = map[string]bool{
		".json": true, ".csv": true, ".tsv": true, ".yaml": true, ".yml": true,
		".toml": true, ".xml": true, ".jsonl": true,
	}
)

// DetectModality picks a modality from a file's extension.
func DetectModality(path string) domain.Modality {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case codeExtensions[ext]:
		return domain.ModalityCode
	case structuredExtensions[ext]:
		return domain.ModalityStructured
	default:
		return domain.ModalityText
	}
}

// Options control which files are loaded.
type Options struct {
	// MaxFileSize skips larger files. Zero uses DefaultMaxFileSize.
	MaxFileSize int64

	// IncludeHidden loads dotfiles and descends into dot directories.
	IncludeHidden bool

	// Extensions restricts loading to these extensions (with the dot).
	// Empty loads every extension.
	Extensions []string

	// Normalisers convert rich formats such as HTML to text.
	// Nil loads every file as-is.
	Normalisers driven.NormaliserRegistry
}

// Loader reads files into domain.Content.
type Loader struct {
	maxSize     int64
	hidden      bool
	exts        map[string]bool
	normalisers driven.NormaliserRegistry
}

// NewLoader creates a loader.
func NewLoader(opts Options) *Loader {
	l := &Loader{maxSize: opts.MaxFileSize, hidden: opts.IncludeHidden, normalisers: opts.Normalisers}
	if l.maxSize <= 0 {
		l.maxSize = DefaultMaxFileSize
	}
	if len(opts.Extensions) > 0 {
		l.exts = make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			l.exts[ext] = true
		}
	}
	return l
}

// Load reads every eligible file under the given files and directories.
// Ineligible files (hidden, binary, too large, filtered out) are skipped.
func (l *Loader) Load(ctx context.Context, roots ...string) ([]*domain.Content, error) {
	var out []*domain.Content
	skipped := 0
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if path != root && !l.hidden && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !l.Accepts(path) {
				skipped++
				return nil
			}

			c, err := l.LoadFile(ctx, path)
			if errors.Is(err, domain.ErrUnsupportedType) {
				logger.Debug("Skipping %s: %v", path, err)
				skipped++
				return nil
			}
			if err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	logger.Debug("Loaded %d files (%d skipped)", len(out), skipped)
	return out, nil
}

// Accepts reports whether a file name passes the hidden and extension
// filters. Directories are filtered while walking.
func (l *Loader) Accepts(path string) bool {
	if !l.hidden && isHidden(filepath.Base(path)) {
		return false
	}
	if l.exts != nil && !l.exts[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	return true
}

// LoadFile reads one file, normalising it when a normaliser handles its
// extension. Binary, malformed and oversized files fail with
// domain.ErrUnsupportedType.
func (l *Loader) LoadFile(ctx context.Context, path string) (*domain.Content, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrValidation, path)
	}
	if info.Size() > l.maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", domain.ErrUnsupportedType, path, info.Size(), l.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	id, err := ContentID(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	c := &domain.Content{
		ID:       id,
		Modality: DetectModality(path),
		Data:     data,
		Metadata: map[string]string{
			"path": ResolvePath(id),
			"name": filepath.Base(path),
			"ext":  ext,
			"size": strconv.FormatInt(info.Size(), 10),
		},
		CreatedAt: info.ModTime(),
		UpdatedAt: info.ModTime(),
	}

	if l.normalisers != nil {
		if n, ok := l.normalisers.Lookup(ext); ok {
			res, err := n.Normalise(ctx, filepath.Base(path), data)
			if err != nil {
				return nil, fmt.Errorf("normalise %s: %w", path, err)
			}
			c.Modality = domain.ModalityText
			c.Data = res.Text
			for k, v := range res.Metadata {
				c.Metadata[k] = v
			}
			c.Metadata["title"] = res.Title
			c.Metadata["format"] = res.Format
			return c, nil
		}
	}

	if isBinary(data) {
		return nil, fmt.Errorf("%w: %s is binary", domain.ErrUnsupportedType, path)
	}
	return c, nil
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}

// isBinary treats NUL bytes or invalid UTF-8 in the leading bytes as binary.
func isBinary(data []byte) bool {
	head := data[:min(len(data), sniffLen)]
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	if len(head) < len(data) {
		// A multi-byte rune may straddle the sniff boundary.
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	return !utf8.Valid(head)
}
