package corosched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelWithoutProcessor(t *testing.T) {
	tx, rx := Channel[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, tx.Send(42))
	}()

	v, err := rx.Recv()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestChannelDisconnectWithoutProcessor(t *testing.T) {
	tx, rx := Channel[int]()
	tx.Close()

	_, err := rx.Recv()
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestChannelTryRecvEmpty(t *testing.T) {
	_, rx := Channel[int]()
	_, err := rx.TryRecv()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestChannelBasicInScheduler(t *testing.T) {
	sched := New(WithWorkers(2))
	results := make([]int, 0, 3)

	err := sched.Run(func() {
		tx, rx := Channel[int]()
		require.NoError(t, Spawn(func() {
			for i := 0; i < 3; i++ {
				require.NoError(t, tx.Send(i))
			}
			tx.Close()
		}))
		for {
			v, err := rx.Recv()
			if err != nil {
				break
			}
			results = append(results, v)
		}
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, results)
}

func TestChannelClonedSendersDisconnectOnlyAfterAll(t *testing.T) {
	sched := New(WithWorkers(2))
	var gotErr error

	err := sched.Run(func() {
		tx, rx := Channel[int]()
		tx2 := tx.Clone()

		require.NoError(t, Spawn(func() {
			require.NoError(t, tx.Send(1))
			tx.Close()
		}))
		require.NoError(t, Spawn(func() {
			require.NoError(t, tx2.Send(2))
			tx2.Close()
		}))

		seen := 0
		for {
			_, err := rx.Recv()
			if err != nil {
				gotErr = err
				break
			}
			seen++
		}
		assert.Equal(t, 2, seen)
	})

	require.NoError(t, err)
	assert.ErrorIs(t, gotErr, ErrDisconnected)
}
