//go:build windows

package corosched

// Windows IOCP support is not implemented: this module's descriptor
// adapters (tcp.go/udp.go/unix_socket.go/pipe.go) manage raw unix-domain
// sockets directly, which do not exist in the same form on Windows.
// Every call here except close fails with errPollerClosed rather than compiling
// against a poller that can't actually back those sockets.
type windowsPoller struct{}

func newPoller() poller { return &windowsPoller{} }

func (p *windowsPoller) init() error { return errPollerClosed }
func (p *windowsPoller) close() error { return nil }
func (p *windowsPoller) add(fd int, interest Interest, cb pollCallback) error {
	return errPollerClosed
}
func (p *windowsPoller) remove(fd int) error      { return errPollerClosed }
func (p *windowsPoller) poll(timeoutMs int) error { return errPollerClosed }
