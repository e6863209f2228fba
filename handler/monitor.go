package handler

import (
	"errors"
	"net"
	"os"
)

// errOwnerGone and errGracefulWake are the two non-connection outcomes of
// a lifecycle monitor wait.
var (
	errOwnerGone    = errors.New("passenger: owner pipe closed, parent is gone")
	errGracefulWake = errors.New("passenger: graceful termination pipe closed")
)

// acceptResult pairs one Accept() outcome for delivery across goroutines.
type acceptResult struct {
	conn net.Conn
	err  error
}

// lifecycleMonitor is the readiness multiplexer for the main loop: it
// holds three wait sources (the listening endpoint, the owner-pipe read
// handle, and the graceful-termination-pipe read handle) and a single
// wait() returns whichever becomes ready first.
//
// Go has no single syscall that waits across a net.Listener and two
// os.File read ends the way poll(2)/kqueue could, so this is realized as
// one goroutine per wait source funnelling into channels that a single
// select races over.
type lifecycleMonitor struct {
	connCh    chan acceptResult
	ownerDone chan struct{}
	graceDone chan struct{}
}

func newLifecycleMonitor(ep *endpoint, ownerPipe, graceRead *os.File) *lifecycleMonitor {
	m := &lifecycleMonitor{
		connCh:    make(chan acceptResult),
		ownerDone: make(chan struct{}),
		graceDone: make(chan struct{}),
	}
	go m.acceptLoop(ep)
	go watchEOF(ownerPipe, m.ownerDone)
	go watchEOF(graceRead, m.graceDone)
	return m
}

func (m *lifecycleMonitor) acceptLoop(ep *endpoint) {
	for {
		conn, err := ep.accept()
		m.connCh <- acceptResult{conn: conn, err: err}
		if err != nil {
			return
		}
	}
}

// watchEOF blocks reading f until any error (EOF, the only thing either
// pipe is ever expected to produce, or "closed" if cleanup beat us to it),
// then closes done exactly once. A stray non-EOF read error is still
// treated as "ready": neither pipe is ever supposed to carry data, so any
// outcome other than "still open, nothing to report" means the wait
// source fired.
func watchEOF(f *os.File, done chan struct{}) {
	var buf [1]byte
	for {
		_, err := f.Read(buf[:])
		if err != nil {
			close(done)
			return
		}
	}
}

// wait returns the first source to become ready: a new connection, the
// owner-pipe EOF, or the graceful-pipe closure, honoring the fixed
// priority order of owner-pipe EOF before graceful-pipe closure before an
// accepted connection within one iteration. Once ownerDone or graceDone
// has fired, every subsequent wait() keeps returning that same outcome
// immediately, since a closed channel is always select-ready — exactly
// the Draining → Exited wakeup the main loop needs.
//
// A bare three-way select picks uniformly among whichever cases are ready,
// so once a termination source fires it can still keep losing to a busy
// connCh under a connection flood — accepting more than the one further
// request allowed after a memory-ceiling breach, and silently reordering
// owner-over-graceful precedence. Checking the two termination sources
// first, non-blocking, makes them win every time they are ready instead
// of merely some of the time.
func (m *lifecycleMonitor) wait() (net.Conn, error) {
	select {
	case <-m.ownerDone:
		return nil, errOwnerGone
	default:
	}
	select {
	case <-m.graceDone:
		return nil, errGracefulWake
	default:
	}

	select {
	case <-m.ownerDone:
		return nil, errOwnerGone
	case <-m.graceDone:
		return nil, errGracefulWake
	case res := <-m.connCh:
		if res.err != nil {
			return nil, transientErr("monitor", res.err)
		}
		return res.conn, nil
	}
}
