package corosched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChannelCrossesProcessors forces many workers so that a sender
// and receiver pair are very likely to land on different Processors,
// exercising readyHandle's cross-thread wake path rather than a single
// processor's own local requeue.
func TestChannelCrossesProcessors(t *testing.T) {
	sched := New(WithWorkers(8))
	const n = 200
	received := make([]bool, n)

	err := sched.Run(func() {
		tx, rx := Channel[int]()

		for i := 0; i < n; i++ {
			i := i
			require.NoError(t, Spawn(func() {
				require.NoError(t, Sched())
				require.NoError(t, tx.Send(i))
			}))
		}

		for i := 0; i < n; i++ {
			v, err := rx.Recv()
			require.NoError(t, err)
			received[v] = true
		}
	})

	require.NoError(t, err)
	for i, ok := range received {
		assert.True(t, ok, "value %d never received", i)
	}
}
