package corosched

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeReadWrite(t *testing.T) {
	sched := New(WithWorkers(2))
	var got string

	err := sched.Run(func() {
		p, err := NewPipe()
		require.NoError(t, err)
		defer p.Close()

		done, doneRx := Channel[int]()
		require.NoError(t, Spawn(func() {
			buf := make([]byte, 64)
			n, err := p.Read(buf)
			require.NoError(t, err)
			got = string(buf[:n])
			done.Send(1)
		}))

		require.NoError(t, Spawn(func() {
			_, err := p.Write([]byte("hello pipe"))
			require.NoError(t, err)
		}))

		_, err = doneRx.Recv()
		require.NoError(t, err)
	})

	require.NoError(t, err)
	require.Equal(t, "hello pipe", got)
}

func TestPipeReadTimesOut(t *testing.T) {
	sched := New(WithWorkers(1))
	var gotErr error

	err := sched.Run(func() {
		p, err := NewPipe()
		require.NoError(t, err)
		defer p.Close()

		p.SetReadTimeout(30)
		buf := make([]byte, 64)
		_, gotErr = p.Read(buf)
	})

	require.NoError(t, err)
	require.ErrorIs(t, gotErr, ErrTimedOut)
}
