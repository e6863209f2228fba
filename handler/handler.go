package handler

import (
	"os"
	"sync"
	"sync/atomic"
)

// Handler is the long-lived object owning one socket endpoint and driving
// one application's main loop. Construct one with New per worker process,
// then call StartMainLoopThread (or MainLoop directly) and, on shutdown,
// Cleanup.
type Handler struct {
	opts     HandlerOptions
	callback Callback

	ownerPipe *os.File

	logger  *diagLogger
	metrics *metrics
	header  *headerSource

	mu      sync.Mutex
	cond    *sync.Cond
	running bool

	iterations uint64
	processed  uint64

	ep  *endpoint
	mon *lifecycleMonitor
	sig *signalDiscipline

	socketName string
	abstract   bool

	graceRead, graceWrite *os.File
	graceCloseOnce        sync.Once

	termWatchdog *watchdog
	termOnce     sync.Once

	cleanupOnce sync.Once
	loopDone    chan struct{}
}

// New constructs a Handler. ownerPipe is the read end of a pipe whose write
// end is held open only by the parent process: its EOF is how this Handler
// notices the parent died. callback is invoked once per successfully
// decoded request.
func New(ownerPipe *os.File, callback Callback, opts HandlerOptions) *Handler {
	h := &Handler{
		opts:      opts,
		callback:  callback,
		ownerPipe: ownerPipe,
		loopDone:  make(chan struct{}),
	}
	h.logger = newDiagLogger(opts.DiagnosticLogPath)
	h.metrics = newMetrics(opts.MetricsRegisterer)
	h.header = newHeaderSource(opts.EnterpriseMarkerPath, h.logger)
	h.cond = sync.NewCond(&h.mu)
	return h
}

// SocketName is the Socket Endpoint's address: an abstract-namespace name
// (no leading NUL) or a filesystem path, valid once the main loop has
// entered the Running state.
func (h *Handler) SocketName() string { return h.socketName }

// IsAbstractNamespace reports whether SocketName is an abstract-namespace
// socket (true) or a filesystem path (false).
func (h *Handler) IsAbstractNamespace() bool { return h.abstract }

// PassengerHeader is the current PASSENGER_HEADER value.
func (h *Handler) PassengerHeader() string { return h.header.header() }

// Iterations is the number of main-loop iterations started so far.
func (h *Handler) Iterations() uint64 { return atomic.LoadUint64(&h.iterations) }

// ProcessedRequests is the number of requests fully handled so far,
// regardless of application outcome.
func (h *Handler) ProcessedRequests() uint64 { return atomic.LoadUint64(&h.processed) }

// IsRunning reports whether the main loop has reached the Running state and
// has not yet exited. It stays true while the loop is draining.
func (h *Handler) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// WaitUntilRunning blocks until the main loop reaches the Running state.
// Used by StartMainLoopThread and by tests that need the socket to exist
// before dialing it.
func (h *Handler) WaitUntilRunning() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for !h.running {
		h.cond.Wait()
	}
}

func (h *Handler) setRunning(running bool) {
	h.mu.Lock()
	h.running = running
	h.mu.Unlock()
	h.cond.Broadcast()
}

// StartMainLoopThread spawns the main loop on a background goroutine and
// blocks the caller until it reaches the Running state, the way a worker
// process starts serving without the caller having to poll.
func (h *Handler) StartMainLoopThread() {
	go func() {
		if err := h.MainLoop(); err != nil {
			h.logger.logf("loop", "main loop exited before starting: %v", err)
		}
	}()
	h.WaitUntilRunning()
}

// Cleanup unwinds a running main loop from any other goroutine: it closes
// the listening socket and the owner-pipe handle (which is what actually
// wakes a blocked Lifecycle Monitor wait, standing in for "inject an
// interrupt into the main-loop thread"), joins the loop, and cancels the
// termination watchdog if one was armed. Idempotent and safe to call more
// than once. MainLoop or StartMainLoopThread must have been called first;
// calling Cleanup without ever starting the loop blocks forever waiting to
// join it.
func (h *Handler) Cleanup() {
	h.cleanupOnce.Do(func() {
		if h.ep != nil {
			h.ep.close()
		}
		if h.ownerPipe != nil {
			h.ownerPipe.Close()
		}
		<-h.loopDone
		h.termWatchdog.cancel()
	})
}
