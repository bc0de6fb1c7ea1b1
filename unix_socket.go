package corosched

import (
	"golang.org/x/sys/unix"
)

// UnixListener is a nonblocking, coroutine-aware UNIX-domain stream
// listener.
type UnixListener struct {
	evented
	sock int
	path string
}

// ListenUnix creates a nonblocking listening socket bound to path.
func ListenUnix(path string) (*UnixListener, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &UnixListener{evented: newEvented(), sock: fd, path: path}, nil
}

func (l *UnixListener) fd() int { return l.sock }

// SetAcceptTimeout arms a deadline for the next Accept call.
func (l *UnixListener) SetAcceptTimeout(ms int64) { l.saveTimeout(ms) }

// Accept parks the calling coroutine until a connection arrives.
func (l *UnixListener) Accept() (*UnixConn, error) {
	timeoutMs := l.takeTimeout()
	fd, err := retryOp(l, InterestRead, func() (int, error) {
		nfd, _, aerr := unix.Accept4(l.sock, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		return nfd, aerr
	}, timeoutMs)
	if err != nil {
		return nil, err
	}
	return &UnixConn{evented: newEvented(), sock: fd}, nil
}

// Close releases the listening socket. The caller is responsible for
// unlinking the backing path, matching raw socket semantics.
func (l *UnixListener) Close() error { return unix.Close(l.sock) }

// UnixConn is a nonblocking, coroutine-aware UNIX-domain stream
// connection.
type UnixConn struct {
	evented
	sock int
}

// DialUnix connects to the listening socket bound at path.
func DialUnix(path string) (*UnixConn, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	c := &UnixConn{evented: newEvented(), sock: fd}
	err = unix.Connect(fd, &unix.SockaddrUnix{Name: path})
	if err == nil {
		return c, nil
	}
	if !wouldBlock(err) {
		unix.Close(fd)
		return nil, err
	}
	if werr := waitEvent(fd, InterestWrite, -1); werr != nil {
		unix.Close(fd)
		return nil, werr
	}
	return c, nil
}

func (c *UnixConn) fd() int { return c.sock }

// SetReadTimeout arms a deadline for the next Read call.
func (c *UnixConn) SetReadTimeout(ms int64) { c.saveTimeout(ms) }

// Read reads into buf, parking whenever the socket would block.
func (c *UnixConn) Read(buf []byte) (int, error) {
	timeoutMs := c.takeTimeout()
	return retryOp(c, InterestRead, func() (int, error) {
		return unix.Read(c.sock, buf)
	}, timeoutMs)
}

// SetWriteTimeout arms a deadline for the next Write call.
func (c *UnixConn) SetWriteTimeout(ms int64) { c.saveTimeout(ms) }

// Write writes buf, parking whenever the socket would block.
func (c *UnixConn) Write(buf []byte) (int, error) {
	timeoutMs := c.takeTimeout()
	total := 0
	for total < len(buf) {
		n, err := retryOp(c, InterestWrite, func() (int, error) {
			return unix.Write(c.sock, buf[total:])
		}, timeoutMs)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// Close releases the connection's socket.
func (c *UnixConn) Close() error { return unix.Close(c.sock) }
