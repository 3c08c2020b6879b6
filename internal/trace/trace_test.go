package trace

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NextIncrementsPerTrace(t *testing.T) {
	r := NewRegistry(10)

	assert.Equal(t, "tr-1.1", r.Next("tr-1"))
	assert.Equal(t, "tr-1.2", r.Next("tr-1"))
	assert.Equal(t, "tr-2.1", r.Next("tr-2"))
	assert.Equal(t, "tr-1.3", r.Next("tr-1"))
}

func TestRegistry_EvictsOldestTrace(t *testing.T) {
	r := NewRegistry(2)

	r.Next("a")
	r.Next("b")
	// "a" освежается использованием, вытесняется "b"
	r.Next("a")
	r.Next("c")

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, "a.3", r.Next("a"))
	// "b" был вытеснен: счетчик начинается заново
	assert.Equal(t, "b.1", r.Next("b"))
}

func TestRegistry_DefaultCapacity(t *testing.T) {
	r := NewRegistry(0)
	for i := 0; i < DefaultCapacity+5; i++ {
		r.Next(fmt.Sprintf("tr-%d", i))
	}
	assert.Equal(t, DefaultCapacity, r.Len())
}

func TestRegistry_ConcurrentNextIsUnique(t *testing.T) {
	r := NewRegistry(10)

	const workers = 8
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := r.Next("shared")
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
}
