package source

import (
	"context"
	"math/rand"
)

// RandomMax is the largest value Random returns
const RandomMax = 999999

// Random serves a uniformly distributed integer in [0, RandomMax]
type Random struct{}

// NewRandom creates a random source
func NewRandom() *Random {
	return &Random{}
}

// Fetch draws a fresh value
func (r *Random) Fetch(ctx context.Context) (int64, error) {
	return rand.Int63n(RandomMax + 1), nil
}
