package analysis

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-covenant/internal/domain"
)

func TestNewModelRotator_EmptyPool(t *testing.T) {
	r, err := NewModelRotator(nil)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, domain.ErrEmptyModelPool)
}

func TestModelRotator_RoundRobin(t *testing.T) {
	// Given a pool of three models
	r, err := NewModelRotator([]string{"a", "b", "c"})
	require.NoError(t, err)

	// When Next is called past the end of the pool
	var got []string
	for range 7 {
		got = append(got, r.Next())
	}

	// Then the cursor wraps back to the start
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c", "a"}, got)
	assert.Equal(t, 3, r.Len())
}

func TestModelRotator_CopiesPool(t *testing.T) {
	pool := []string{"a", "b"}
	r, err := NewModelRotator(pool)
	require.NoError(t, err)

	pool[0] = "mutated"
	models := r.Models()
	models[1] = "mutated"

	assert.Equal(t, []string{"a", "b"}, r.Models())
	assert.Equal(t, "a", r.Next())
}

func TestModelRotator_ConcurrentNextIsFair(t *testing.T) {
	// Given a pool of four models shared by many goroutines
	r, err := NewModelRotator([]string{"a", "b", "c", "d"})
	require.NoError(t, err)

	const perGoroutine, goroutines = 100, 8
	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)

	// When they all draw models concurrently
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := map[string]int{}
			for range perGoroutine {
				local[r.Next()]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Then no slot is skipped or handed out twice
	for _, m := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, perGoroutine*goroutines/4, counts[m], m)
	}
}

func TestModelRotator_NextAfter(t *testing.T) {
	tests := []struct {
		name  string
		pool  []string
		taken int
		prev  string
		want  []string
	}{
		{"empty prev behaves like next", []string{"a", "b"}, 0, "", []string{"a", "b"}},
		{"cursor on prev is skipped", []string{"a", "b"}, 2, "a", []string{"b", "a"}},
		{"cursor past prev is kept", []string{"a", "b", "c"}, 1, "a", []string{"b", "c"}},
		{"pool of one repeats", []string{"a"}, 0, "a", []string{"a", "a"}},
		{"duplicate slots skipped", []string{"a", "a", "b"}, 0, "a", []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given a rotator whose cursor other batches have advanced
			r, err := NewModelRotator(tt.pool)
			require.NoError(t, err)
			for range tt.taken {
				r.Next()
			}

			// When a batch asks for the model after prev, then the next one after that
			first := r.NextAfter(tt.prev)
			second := r.NextAfter(first)

			// Then neither draw repeats the model it follows unless the pool has no other
			assert.Equal(t, tt.want, []string{first, second})
		})
	}
}
