package deque

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopFromOwnerIsLIFO(t *testing.T) {
	d := New[int](4)
	d.PushBottom(1)
	d.PushBottom(2)
	d.PushBottom(3)

	v, ok := d.PopBottom()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = d.PopBottom()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestStealTopIsFIFO(t *testing.T) {
	d := New[int](4)
	d.PushBottom(1)
	d.PushBottom(2)
	d.PushBottom(3)

	v, ok := d.StealTop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = d.StealTop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestEmptyPopAndSteal(t *testing.T) {
	d := New[int](2)
	_, ok := d.PopBottom()
	assert.False(t, ok)
	_, ok = d.StealTop()
	assert.False(t, ok)
}

func TestGrowPreservesOrder(t *testing.T) {
	d := New[int](2)
	for i := 0; i < 10; i++ {
		d.PushBottom(i)
	}
	assert.Equal(t, 10, d.Len())
	for i := 0; i < 10; i++ {
		v, ok := d.StealTop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.True(t, d.Empty())
}

func TestConcurrentStealersDontDuplicate(t *testing.T) {
	d := New[int](8)
	const n = 2000
	for i := 0; i < n; i++ {
		d.PushBottom(i)
	}

	seen := make(chan int, n)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := d.StealTop()
				if !ok {
					return
				}
				seen <- v
			}
		}()
	}
	wg.Wait()
	close(seen)

	count := 0
	dedup := make(map[int]bool)
	for v := range seen {
		require.False(t, dedup[v], "value %d stolen twice", v)
		dedup[v] = true
		count++
	}
	assert.Equal(t, n, count)
}
