// Package analysis turns batches of contract clauses into structured risk
// records. It owns the model rotation, the bounded per-batch attempt loop,
// tolerant response parsing, one-shot reconciliation of Unknown results,
// and the batch driver that ties them together.
package analysis

import (
	"sync"

	"github.com/ahrav/go-covenant/internal/domain"
)

// ModelRotator hands out model specs from a fixed pool in round-robin
// order. The cursor is shared by every batch that holds the rotator, so
// concurrent batches never receive the same slot twice in one cycle.
type ModelRotator struct {
	mu     sync.Mutex
	models []string
	cursor int
}

// NewModelRotator copies models into a new rotator. The pool must not be
// empty.
func NewModelRotator(models []string) (*ModelRotator, error) {
	if len(models) == 0 {
		return nil, domain.ErrEmptyModelPool
	}
	pool := make([]string, len(models))
	copy(pool, models)
	return &ModelRotator{models: pool}, nil
}

// Next returns the model under the cursor and advances it, wrapping to the
// start of the pool.
func (r *ModelRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.models[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.models)
	return m
}

// NextAfter is Next for a batch whose previous attempt used prev. When
// concurrent batches have moved the cursor so that it points at prev
// again, that slot is skipped and handed to the next caller. A pool that
// holds nothing but prev returns prev. An empty prev behaves like Next.
func (r *ModelRotator) NextAfter(prev string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var m string
	for range len(r.models) {
		m = r.models[r.cursor]
		r.cursor = (r.cursor + 1) % len(r.models)
		if m != prev {
			break
		}
	}
	return m
}

// Models returns a copy of the pool in rotation order.
func (r *ModelRotator) Models() []string {
	out := make([]string, len(r.models))
	copy(out, r.models)
	return out
}

// Len returns the pool size.
func (r *ModelRotator) Len() int { return len(r.models) }
