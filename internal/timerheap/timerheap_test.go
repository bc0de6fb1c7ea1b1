package timerheap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpireOrder(t *testing.T) {
	var h Heap
	h.Push(3, 300)
	h.Push(1, 100)
	h.Push(2, 200)

	d, ok := h.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, int64(100), d)

	expired := h.ExpireBefore(250)
	require.Len(t, expired, 2)
	assert.Equal(t, uint64(1), expired[0].Token)
	assert.Equal(t, uint64(2), expired[1].Token)
	assert.Equal(t, 1, h.Len())
}

func TestRemoveCancelsTimer(t *testing.T) {
	var h Heap
	h.Push(1, 100)
	h.Push(2, 200)

	require.True(t, h.Remove(1))
	assert.False(t, h.Remove(1))

	expired := h.ExpireBefore(1000)
	require.Len(t, expired, 1)
	assert.Equal(t, uint64(2), expired[0].Token)
}

func TestNoTimersArmed(t *testing.T) {
	var h Heap
	_, ok := h.NextDeadline()
	assert.False(t, ok)
	assert.Empty(t, h.ExpireBefore(1000))
}
