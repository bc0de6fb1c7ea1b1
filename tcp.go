package corosched

import (
	"net"

	"golang.org/x/sys/unix"
)

// TCPListener is a nonblocking, coroutine-aware TCP listener built
// directly on raw sockets rather than wrapping net.Listener, so Accept
// can park on Evented instead of blocking the OS thread.
type TCPListener struct {
	evented
	sock int
}

// ListenTCP creates a nonblocking listening socket bound to addr.
func ListenTCP(addr *net.TCPAddr) (*TCPListener, error) {
	domain := unix.AF_INET
	if addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	sa, err := toSockaddr(addr.IP, addr.Port)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &TCPListener{evented: newEvented(), sock: fd}, nil
}

func (l *TCPListener) fd() int { return l.sock }

// SetAcceptTimeout arms a deadline for the next Accept call, relative
// to the moment Accept is invoked.
func (l *TCPListener) SetAcceptTimeout(ms int64) { l.saveTimeout(ms) }

// Accept parks the calling coroutine until a connection arrives,
// returning a nonblocking TCPConn wrapping it.
func (l *TCPListener) Accept() (*TCPConn, error) {
	timeoutMs := l.takeTimeout()
	fd, err := retryOp(l, InterestRead, func() (int, error) {
		nfd, _, aerr := unix.Accept4(l.sock, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		return nfd, aerr
	}, timeoutMs)
	if err != nil {
		return nil, err
	}
	return &TCPConn{evented: newEvented(), sock: fd}, nil
}

// Close releases the listening socket.
func (l *TCPListener) Close() error { return unix.Close(l.sock) }

// TCPConn is a nonblocking, coroutine-aware TCP connection.
type TCPConn struct {
	evented
	sock int
}

// DialTCP connects to addr, parking the calling coroutine until the
// nonblocking connect completes.
func DialTCP(addr *net.TCPAddr) (*TCPConn, error) {
	domain := unix.AF_INET
	if addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	sa, err := toSockaddr(addr.IP, addr.Port)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	c := &TCPConn{evented: newEvented(), sock: fd}
	err = unix.Connect(fd, sa)
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
	if serr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR); gerr == nil && serr != 0 {
		unix.Close(fd)
		return nil, unix.Errno(serr)
	}
	return c, nil
}

func (c *TCPConn) fd() int { return c.sock }

// SetReadTimeout arms a deadline for the next Read call.
func (c *TCPConn) SetReadTimeout(ms int64) { c.saveTimeout(ms) }

// Read reads into buf, parking whenever the socket would block.
func (c *TCPConn) Read(buf []byte) (int, error) {
	timeoutMs := c.takeTimeout()
	return retryOp(c, InterestRead, func() (int, error) {
		return unix.Read(c.sock, buf)
	}, timeoutMs)
}

// SetWriteTimeout arms a deadline for the next Write call.
func (c *TCPConn) SetWriteTimeout(ms int64) { c.saveTimeout(ms) }

// Write writes buf, parking whenever the socket would block, and
// loops internally until every byte is written or an error occurs.
func (c *TCPConn) Write(buf []byte) (int, error) {
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
func (c *TCPConn) Close() error { return unix.Close(c.sock) }

// getsockname resolves the local address a socket is bound to, used by
// tests that bind to port 0 and need the kernel-assigned ephemeral
// port back.
func getsockname(fd int) (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, err
	}
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}, nil
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}, nil
	default:
		return nil, unix.EINVAL
	}
}

func toSockaddr(ip net.IP, port int) (unix.Sockaddr, error) {
	if v4 := ip.To4(); v4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = port
		copy(sa.Addr[:], v4)
		return &sa, nil
	}
	var sa unix.SockaddrInet6
	sa.Port = port
	copy(sa.Addr[:], ip.To16())
	return &sa, nil
}
