package corosched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncChannelWithoutProcessor(t *testing.T) {
	tx, rx := SyncChannel[int](1)

	require.NoError(t, tx.Send(7))
	v, err := rx.Recv()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestSyncChannelTrySendFullWithoutProcessor(t *testing.T) {
	tx, _ := SyncChannel[int](1)
	require.NoError(t, tx.TrySend(1))

	err := tx.TrySend(2)
	var tse TrySendError[int]
	require.ErrorAs(t, err, &tse)
	assert.Equal(t, 2, tse.Value)
	assert.ErrorIs(t, err, ErrFull)
}

func TestSyncChannelOverflowParksSender(t *testing.T) {
	sched := New(WithWorkers(2))
	var order []int

	err := sched.Run(func() {
		tx, rx := SyncChannel[int](1)

		require.NoError(t, Spawn(func() {
			for i := 0; i < 4; i++ {
				require.NoError(t, tx.Send(i))
			}
			tx.Close()
		}))

		for {
			v, err := rx.Recv()
			if err != nil {
				break
			}
			order = append(order, v)
		}
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestSyncChannelDisconnect(t *testing.T) {
	tx, rx := SyncChannel[int](0)
	tx.Close()

	_, err := rx.Recv()
	assert.ErrorIs(t, err, ErrDisconnected)
}
