// Package source provides the values served by the daemon. Each variant reads
// its external resource fresh on every call; nothing is cached between calls.
package source

import (
	"context"
)

// ValueSource produces the current value on demand
type ValueSource interface {
	Fetch(ctx context.Context) (int64, error)
}

// Func adapts an ordinary function to a ValueSource
type Func func(ctx context.Context) (int64, error)

// Fetch calls f
func (f Func) Fetch(ctx context.Context) (int64, error) {
	return f(ctx)
}
