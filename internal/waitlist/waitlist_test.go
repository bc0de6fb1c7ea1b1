package waitlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	var w List[int]
	w.PushBack(1)
	w.PushBack(2)
	w.PushBack(3)

	assert.Equal(t, 3, w.Len())

	v, ok := w.PopFront()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = w.PopFront()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestPopFrontEmpty(t *testing.T) {
	var w List[int]
	_, ok := w.PopFront()
	assert.False(t, ok)
}

func TestLockedDoubleCheck(t *testing.T) {
	var w List[int]
	w.Lock()
	w.PushBackLocked(42)
	w.Unlock()

	v, ok := w.PopFront()
	require.True(t, ok)
	assert.Equal(t, 42, v)
}
