package corosched

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPReadFromTimesOut(t *testing.T) {
	sched := New(WithWorkers(1))
	var gotErr error

	err := sched.Run(func() {
		conn, err := ListenUDP(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
		require.NoError(t, err)
		defer conn.Close()

		conn.SetReadTimeout(30)
		buf := make([]byte, 64)
		_, _, gotErr = conn.ReadFrom(buf)
	})

	require.NoError(t, err)
	assert.ErrorIs(t, gotErr, ErrTimedOut)
}

func TestUDPSendRecvRoundTrip(t *testing.T) {
	sched := New(WithWorkers(2))
	var gotPayload string

	err := sched.Run(func() {
		srv, err := ListenUDP(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
		require.NoError(t, err)
		defer srv.Close()

		srvAddr, err := getsockname(srv.fd())
		require.NoError(t, err)

		done, doneRx := Channel[int]()
		require.NoError(t, Spawn(func() {
			buf := make([]byte, 64)
			n, _, err := srv.ReadFrom(buf)
			require.NoError(t, err)
			gotPayload = string(buf[:n])
			done.Send(1)
		}))

		require.NoError(t, Spawn(func() {
			cli, err := ListenUDP(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
			require.NoError(t, err)
			defer cli.Close()
			_, err = cli.WriteTo([]byte("hello"), &net.UDPAddr{IP: srvAddr.IP, Port: srvAddr.Port})
			require.NoError(t, err)
		}))

		_, err = doneRx.Recv()
		require.NoError(t, err)
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", gotPayload)
}
