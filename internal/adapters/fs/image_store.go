package fs

import (
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bft-labs/seedstream/internal/domain"
)

// ImageStore writes each image to its own file and hands out file://
// handles. Released handles have their file removed.
type ImageStore struct {
	dir string

	mu    sync.Mutex
	files map[domain.ImageHandle]string
}

// NewImageStore creates a store under dir, creating it if needed.
func NewImageStore(dir string) (*ImageStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &ImageStore{dir: abs, files: make(map[domain.ImageHandle]string)}, nil
}

// Put writes content to a new file.
func (s *ImageStore) Put(content []byte, contentType string) (domain.ImageHandle, error) {
	path := filepath.Join(s.dir, uuid.NewString()+extension(contentType))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}

	handle := domain.ImageHandle((&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String())

	s.mu.Lock()
	s.files[handle] = path
	s.mu.Unlock()
	return handle, nil
}

// Release removes the file behind handle.
func (s *ImageStore) Release(handle domain.ImageHandle) error {
	s.mu.Lock()
	path, ok := s.files[handle]
	delete(s.files, handle)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown image handle %q", handle)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the file behind a live handle.
func (s *ImageStore) Path(handle domain.ImageHandle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.files[handle]
	return path, ok
}

// Dir returns the directory images are written to.
func (s *ImageStore) Dir() string {
	return s.dir
}

func extension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}
