// Package uploads stores submitted media files on local disk.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/models"
)

// DefaultMaxBytes caps a single upload.
const DefaultMaxBytes int64 = 100 << 20

var (
	// ErrUnsupportedExtension is returned for files outside the allow-list.
	ErrUnsupportedExtension = errors.New("unsupported file type")
	// ErrTooLarge is returned when the body exceeds the configured limit.
	ErrTooLarge = errors.New("file too large")
	// ErrInvalidName is returned by Open for names that were not produced by Save.
	ErrInvalidName = errors.New("invalid upload name")
)

// Saved describes a stored upload.
type Saved struct {
	Name string
	Path string
	Kind models.MediaKind
	Size int64
}

// Store writes uploads into a single directory.
type Store struct {
	dir      string
	maxBytes int64
	logger   *logging.Logger
}

// NewStore creates dir if needed.
func NewStore(dir string, maxBytes int64, logger *logging.Logger) (*Store, error) {
	if dir == "" {
		dir = "uploads"
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, logger: logger}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// MaxBytes returns the per-file size limit.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// KindFor validates the extension of originalName and returns its media kind.
func KindFor(originalName string) (models.MediaKind, string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	kind, ok := models.MediaKindForExtension(ext)
	if !ok {
		return "", "", fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedExtension, ext, strings.Join(models.AllowedExtensions(), ", "))
	}
	return kind, ext, nil
}

// Save copies r into a new file named by a random hex id plus the original
// extension. Partially written files are removed on error.
func (s *Store) Save(originalName string, r io.Reader) (Saved, error) {
	kind, ext, err := KindFor(originalName)
	if err != nil {
		return Saved{}, err
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	path := filepath.Join(s.dir, name)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return Saved{}, fmt.Errorf("create upload file: %w", err)
	}

	// Read one byte past the limit to detect oversize bodies.
	written, err := io.Copy(file, io.LimitReader(r, s.maxBytes+1))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return Saved{}, fmt.Errorf("write upload file: %w", err)
	}
	if written > s.maxBytes {
		os.Remove(path)
		return Saved{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}

	s.logger.Debug("Stored upload", logging.WithFields(map[string]interface{}{
		"name": name,
		"kind": kind,
		"size": written,
	}))

	return Saved{Name: name, Path: path, Kind: kind, Size: written}, nil
}

// Open returns a stored file by name. Names containing path elements are rejected.
func (s *Store) Open(name string) (*os.File, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, ErrInvalidName
	}
	return os.Open(filepath.Join(s.dir, name))
}

// Remove deletes a stored file. Missing files are ignored.
func (s *Store) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove upload", logging.WithFields(map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		}))
	}
}
