package ports

import "github.com/bft-labs/seedstream/internal/domain"

// ImageStore holds decoded images behind handles a presentation layer can
// render. Every handle returned by Put must eventually be passed to Release.
type ImageStore interface {
	Put(content []byte, contentType string) (domain.ImageHandle, error)
	Release(handle domain.ImageHandle) error
}
