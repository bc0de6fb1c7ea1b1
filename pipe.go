package corosched

import "golang.org/x/sys/unix"

// Pipe is a nonblocking, coroutine-aware OS pipe, the simplest
// Evented: no addressing, just two nonblocking descriptors sharing the
// same retry-and-park template as the socket adapters.
type Pipe struct {
	r pipeEnd
	w pipeEnd
}

type pipeEnd struct {
	evented
	sock int
}

func (p *pipeEnd) fd() int { return p.sock }

// NewPipe creates an OS pipe with both ends set nonblocking.
func NewPipe() (*Pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &Pipe{
		r: pipeEnd{evented: newEvented(), sock: fds[0]},
		w: pipeEnd{evented: newEvented(), sock: fds[1]},
	}, nil
}

// SetReadTimeout arms a deadline for the next Read call.
func (p *Pipe) SetReadTimeout(ms int64) { p.r.saveTimeout(ms) }

// Read reads into buf, parking whenever the pipe is empty.
func (p *Pipe) Read(buf []byte) (int, error) {
	timeoutMs := p.r.takeTimeout()
	return retryOp(&p.r, InterestRead, func() (int, error) {
		return unix.Read(p.r.sock, buf)
	}, timeoutMs)
}

// SetWriteTimeout arms a deadline for the next Write call.
func (p *Pipe) SetWriteTimeout(ms int64) { p.w.saveTimeout(ms) }

// Write writes buf, parking whenever the pipe's buffer is full.
func (p *Pipe) Write(buf []byte) (int, error) {
	timeoutMs := p.w.takeTimeout()
	total := 0
	for total < len(buf) {
		n, err := retryOp(&p.w, InterestWrite, func() (int, error) {
			return unix.Write(p.w.sock, buf[total:])
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

// Close releases both ends of the pipe.
func (p *Pipe) Close() error {
	rerr := unix.Close(p.r.sock)
	werr := unix.Close(p.w.sock)
	if rerr != nil {
		return rerr
	}
	return werr
}
