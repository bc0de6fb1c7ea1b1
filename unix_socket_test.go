package corosched

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnixListenerAcceptEcho(t *testing.T) {
	sched := New(WithWorkers(2))
	var gotLine string

	sockPath := filepath.Join(t.TempDir(), fmt.Sprintf("corosched-%d.sock", os.Getpid()))

	err := sched.Run(func() {
		ln, err := ListenUnix(sockPath)
		require.NoError(t, err)
		defer ln.Close()

		done, doneRx := Channel[int]()
		require.NoError(t, Spawn(func() {
			conn, err := ln.Accept()
			require.NoError(t, err)
			defer conn.Close()

			buf := make([]byte, 64)
			n, err := conn.Read(buf)
			require.NoError(t, err)
			_, err = conn.Write(buf[:n])
			require.NoError(t, err)
			done.Send(0)
		}))

		require.NoError(t, Spawn(func() {
			conn, err := DialUnix(sockPath)
			require.NoError(t, err)
			defer conn.Close()

			_, err = conn.Write([]byte("ping"))
			require.NoError(t, err)

			buf := make([]byte, 64)
			n, err := conn.Read(buf)
			require.NoError(t, err)
			gotLine = string(buf[:n])
			done.Send(0)
		}))

		for i := 0; i < 2; i++ {
			_, err = doneRx.Recv()
			require.NoError(t, err)
		}
	})

	require.NoError(t, err)
	require.Equal(t, "ping", gotLine)
}

func TestUnixListenerAcceptTimesOut(t *testing.T) {
	sched := New(WithWorkers(1))
	var gotErr error

	sockPath := filepath.Join(t.TempDir(), fmt.Sprintf("corosched-%d.sock", os.Getpid()))

	err := sched.Run(func() {
		ln, err := ListenUnix(sockPath)
		require.NoError(t, err)
		defer ln.Close()

		ln.SetAcceptTimeout(30)
		_, gotErr = ln.Accept()
	})

	require.NoError(t, err)
	require.ErrorIs(t, gotErr, ErrTimedOut)
}
