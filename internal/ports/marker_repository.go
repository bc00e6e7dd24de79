package ports

import (
	"context"

	"github.com/bft-labs/seedstream/internal/domain"
)

// MarkerRepository persists the session marker written on first activation.
type MarkerRepository interface {
	// Load returns the stored marker, or a zero marker and nil error if none exists.
	Load(ctx context.Context) (domain.SessionMarker, error)

	// Save persists the marker atomically.
	Save(ctx context.Context, marker domain.SessionMarker) error
}
