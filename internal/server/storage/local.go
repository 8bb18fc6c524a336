// Package storage keeps uploaded images on the local filesystem and makes
// sure reads never escape the storage root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/dmitrijs2005/ecomarket/internal/filex"
	"github.com/dmitrijs2005/ecomarket/internal/logging"
	"github.com/google/uuid"
)

// Mirror receives a copy of every stored file.
type Mirror interface {
	Put(ctx context.Context, name, mediaType string, body io.ReadSeeker) error
}

// LocalStore writes files under a single root directory.
type LocalStore struct {
	root   string
	mirror Mirror
	logger logging.Logger
}

// NewLocalStore creates dir if needed and uses its absolute, cleaned form
// as the root.
func NewLocalStore(dir string, logger logging.Logger) (*LocalStore, error) {
	root, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error preparing upload dir: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &LocalStore{root: root, logger: logger}, nil
}

// WithMirror copies stored files to m. Mirror failures are logged and do
// not fail Store.
func (s *LocalStore) WithMirror(m Mirror) *LocalStore {
	s.mirror = m
	return s
}

func (s *LocalStore) Root() string { return s.root }

// Store writes content under a fresh random name that keeps only the
// extension of originalFilename, and returns that name.
func (s *LocalStore) Store(ctx context.Context, originalFilename string, content io.Reader) (string, error) {
	name := uuid.NewString() + extension(originalFilename)

	path, err := s.Resolve(name)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("error creating file: %w", err)
	}

	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("error writing file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("error writing file: %w", err)
	}

	s.mirrorFile(ctx, name, path)

	return name, nil
}

// Resolve maps a stored name to its path under the root. Names that clean
// to the root itself or to anything outside it yield common.ErrAccessDenied.
func (s *LocalStore) Resolve(name string) (string, error) {
	candidate := filepath.Clean(filepath.Join(s.root, name))

	rel, err := filepath.Rel(s.root, candidate)
	if err != nil || rel == "." || rel == ".." || filepath.IsAbs(rel) ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", common.ErrAccessDenied
	}

	return candidate, nil
}

// Open resolves name and opens it for reading together with its media type.
// The type comes from the extension, then from content sniffing, and
// defaults to application/octet-stream. Missing files and directories yield
// common.ErrorNotFound.
func (s *LocalStore) Open(name string) (*os.File, string, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", common.ErrorNotFound
		}
		return nil, "", err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, "", err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, "", common.ErrorNotFound
	}

	mediaType, err := detectMediaType(f, name)
	if err != nil {
		_ = f.Close()
		return nil, "", err
	}

	return f, mediaType, nil
}

func (s *LocalStore) mirrorFile(ctx context.Context, name, path string) {
	if s.mirror == nil {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn(ctx, "mirror skipped", "filename", name, "error", err)
		return
	}
	defer f.Close()

	mediaType, err := detectMediaType(f, name)
	if err != nil {
		mediaType = octetStream
	}

	if err := s.mirror.Put(ctx, name, mediaType, f); err != nil {
		s.logger.Warn(ctx, "mirror upload failed", "filename", name, "error", err)
	}
}

// extension returns the last ".ext" of the base name, or "" when the name
// has no dot or only a leading one.
func extension(original string) string {
	base := original[strings.LastIndexAny(original, `/\`)+1:]
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return ""
	}
	return base[i:]
}

func detectMediaType(f io.ReadSeeker, name string) (string, error) {
	if mt := mime.TypeByExtension(filepath.Ext(name)); mt != "" {
		return mt, nil
	}

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if n == 0 {
		return octetStream, nil
	}
	return http.DetectContentType(buf[:n]), nil
}
