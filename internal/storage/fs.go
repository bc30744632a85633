package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/starford/jotpad/internal/models"
)

// maxDuplicates bounds the "name (n).ext" search in Export.
const maxDuplicates = 1000

// FS implements Exporter backed by a local directory.
type FS struct {
	root string // absolute path to the download directory
}

var _ Exporter = (*FS)(nil)

// NewFS creates a new FS rooted at the given directory, creating it if needed.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute download directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("storage: empty path")
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

// Export writes exp under a sanitized copy of its filename. An existing file
// is never overwritten; "name (1).txt", "name (2).txt" and so on are tried.
func (f *FS) Export(exp models.Export) (string, error) {
	name := SanitizeFilename(exp.Filename)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; ; i++ {
		abs, err := f.safePath(candidate)
		if err != nil {
			return "", err
		}
		_, err = os.Stat(abs)
		if errors.Is(err, fs.ErrNotExist) {
			if err := f.Write(candidate, exp.Content); err != nil {
				return "", err
			}
			return abs, nil
		}
		if err != nil {
			return "", fmt.Errorf("storage: stat %s: %w", candidate, err)
		}
		if i > maxDuplicates {
			return "", fmt.Errorf("storage: too many copies of %s", name)
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".jotpad-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// SanitizeFilename turns a note title based name into a single safe path
// element. Separators, reserved characters and control characters become
// underscores; a name left blank falls back to the default note title.
func SanitizeFilename(name string) string {
	ext := filepath.Ext(name)
	if strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)

	stem = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, stem)
	stem = strings.Trim(stem, " .")
	if stem == "" {
		stem = models.DefaultTitle
	}
	if ext == "" {
		ext = ".txt"
	}
	return stem + ext
}
