package corosched

import (
	"net"

	"golang.org/x/sys/unix"
)

// UDPConn is a nonblocking, coroutine-aware UDP socket.
type UDPConn struct {
	evented
	sock int
}

// ListenUDP creates a nonblocking UDP socket bound to addr.
func ListenUDP(addr *net.UDPAddr) (*UDPConn, error) {
	domain := unix.AF_INET
	if addr.IP != nil && addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	ip := addr.IP
	if ip == nil {
		ip = net.IPv4zero
	}
	sa, err := toSockaddr(ip, addr.Port)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &UDPConn{evented: newEvented(), sock: fd}, nil
}

func (c *UDPConn) fd() int { return c.sock }

// SetReadTimeout arms a deadline for the next ReadFrom call.
func (c *UDPConn) SetReadTimeout(ms int64) { c.saveTimeout(ms) }

// ReadFrom reads one datagram into buf, parking whenever the socket
// has nothing pending. A datagram larger than buf is truncated, same
// as the underlying recvfrom(2).
func (c *UDPConn) ReadFrom(buf []byte) (int, net.Addr, error) {
	timeoutMs := c.takeTimeout()
	type result struct {
		n  int
		sa unix.Sockaddr
	}
	r, err := retryOp(c, InterestRead, func() (result, error) {
		n, from, rerr := unix.Recvfrom(c.sock, buf, 0)
		return result{n: n, sa: from}, rerr
	}, timeoutMs)
	if err != nil {
		return 0, nil, err
	}
	return r.n, sockaddrToUDPAddr(r.sa), nil
}

// SetWriteTimeout arms a deadline for the next WriteTo call.
func (c *UDPConn) SetWriteTimeout(ms int64) { c.saveTimeout(ms) }

// WriteTo sends buf as a single datagram to addr, parking whenever the
// send buffer is full.
func (c *UDPConn) WriteTo(buf []byte, addr *net.UDPAddr) (int, error) {
	timeoutMs := c.takeTimeout()
	sa, err := toSockaddr(addr.IP, addr.Port)
	if err != nil {
		return 0, err
	}
	return retryOp(c, InterestWrite, func() (int, error) {
		if serr := unix.Sendto(c.sock, buf, 0, sa); serr != nil {
			return 0, serr
		}
		return len(buf), nil
	}, timeoutMs)
}

// Close releases the socket.
func (c *UDPConn) Close() error { return unix.Close(c.sock) }

func sockaddrToUDPAddr(sa unix.Sockaddr) *net.UDPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.UDPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	case *unix.SockaddrInet6:
		return &net.UDPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return nil
	}
}
