package corosched

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "suspended", StateSuspended.String())
	assert.Equal(t, "blocked", StateBlocked.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "unknown", State(99).String())
}

// TestRunningCountNeverExceedsWorkers spawns many coroutines that each
// record entry/exit into a shared atomic counter, tracking the highest
// value it reaches, and asserts the directly observable invariant:
// running count never exceeds the worker count.
func TestRunningCountNeverExceedsWorkers(t *testing.T) {
	const workers = 3
	sched := New(WithWorkers(workers))

	var running atomic.Int32
	var maxSeen atomic.Int32
	const total = 30
	done, doneRx := Channel[int]()

	err := sched.Run(func() {
		for i := 0; i < total; i++ {
			require.NoError(t, Spawn(func() {
				n := running.Add(1)
				for {
					cur := maxSeen.Load()
					if n <= cur || maxSeen.CompareAndSwap(cur, n) {
						break
					}
				}
				require.NoError(t, Sched())
				running.Add(-1)
				require.NoError(t, done.Send(0))
			}))
		}
		for i := 0; i < total; i++ {
			_, err := doneRx.Recv()
			require.NoError(t, err)
		}
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, int(maxSeen.Load()), workers)
}
