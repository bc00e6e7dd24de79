package app

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/bft-labs/seedstream/internal/domain"
)

// SeedRange is the exclusive upper bound of generated seeds.
const SeedRange = 10_000_000

// SeedGenerator produces seed text.
type SeedGenerator func() string

// RandomSeed returns a uniformly distributed integer in [0, SeedRange) as text.
func RandomSeed() string {
	return strconv.Itoa(rand.IntN(SeedRange))
}

// ParseSeed converts seed text into the integer sent on the wire.
// Empty text is 0.
func ParseSeed(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidSeed, s)
	}
	return n, nil
}
