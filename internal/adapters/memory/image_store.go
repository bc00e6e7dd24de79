// Package memory provides in-process adapters.
package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bft-labs/seedstream/internal/domain"
)

// HandlePrefix prefixes every handle issued by ImageStore.
const HandlePrefix = "mem:"

// Image is a stored image.
type Image struct {
	Content     []byte
	ContentType string
}

// ImageStore keeps images in memory until released.
type ImageStore struct {
	mu     sync.RWMutex
	images map[domain.ImageHandle]Image
}

// NewImageStore creates an empty store.
func NewImageStore() *ImageStore {
	return &ImageStore{images: make(map[domain.ImageHandle]Image)}
}

// Put stores a copy of content.
func (s *ImageStore) Put(content []byte, contentType string) (domain.ImageHandle, error) {
	h := domain.ImageHandle(HandlePrefix + uuid.NewString())
	img := Image{Content: append([]byte(nil), content...), ContentType: contentType}

	s.mu.Lock()
	s.images[h] = img
	s.mu.Unlock()
	return h, nil
}

// Release drops the image behind handle.
func (s *ImageStore) Release(handle domain.ImageHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[handle]; !ok {
		return fmt.Errorf("unknown image handle %q", handle)
	}
	delete(s.images, handle)
	return nil
}

// Get returns the image behind a live handle.
func (s *ImageStore) Get(handle domain.ImageHandle) (Image, bool) {
	if !strings.HasPrefix(string(handle), HandlePrefix) {
		return Image{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[handle]
	return img, ok
}

// Len returns the number of live images.
func (s *ImageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}
