package corosched

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTCPListenerAcceptEcho(t *testing.T) {
	sched := New(WithWorkers(2))
	var gotLine string

	err := sched.Run(func() {
		ln, err := ListenTCP(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
		require.NoError(t, err)
		defer ln.Close()

		addr, err := tcpLocalAddr(ln)
		require.NoError(t, err)

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
			conn, err := DialTCP(addr)
			require.NoError(t, err)
			defer conn.Close()

			msg := []byte("ping")
			_, err = conn.Write(msg)
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

// tcpLocalAddr resolves the ephemeral port the kernel assigned a
// listener created with Port: 0, using the raw getsockname(2) the
// stdlib's net package would otherwise hide.
func tcpLocalAddr(ln *TCPListener) (*net.TCPAddr, error) {
	sa, err := getsockname(ln.fd())
	if err != nil {
		return nil, err
	}
	return sa, nil
}
