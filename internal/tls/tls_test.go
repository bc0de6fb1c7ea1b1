package tls

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoIDDistinctAcrossGoroutines(t *testing.T) {
	ids := make(chan int64, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- GoID()
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		require.NotEqual(t, int64(-1), id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestRegistrySetGetDelete(t *testing.T) {
	r := NewRegistry[string]()
	id := GoID()

	_, ok := r.Get(id)
	assert.False(t, ok)

	r.Set(id, "hello")
	v, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, "hello", v)

	r.Delete(id)
	_, ok = r.Get(id)
	assert.False(t, ok)
}
