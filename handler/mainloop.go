package handler

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"
)

// MainLoop runs the request handler's main loop to completion:
// Init (create the endpoint and graceful pipe, install signal discipline) →
// Running (accept and handle one connection per iteration) → Draining (the
// graceful pipe has been closed, either by a caught SOFT_TERMINATION or by a
// resident-memory ceiling breach, and at most one further request is
// accepted) → Exited (graceful pipe and listening socket closed, every
// signal disposition restored; the owner pipe and an armed termination
// watchdog are released by Cleanup, not here).
//
// It normally only returns after Cleanup unwinds it from another goroutine,
// or after the owner pipe reports the parent has died, or after a caught
// SOFT_TERMINATION drains the graceful pipe. A non-nil error means the loop
// never reached Running at all.
func (h *Handler) MainLoop() error {
	defer close(h.loopDone)

	ep, err := createEndpoint(h.opts.preferAbstract())
	if err != nil {
		return fmt.Errorf("passenger: create endpoint: %w", err)
	}
	h.ep = ep
	h.socketName = ep.name
	h.abstract = ep.abstract

	graceRead, graceWrite, err := os.Pipe()
	if err != nil {
		ep.close()
		return fmt.Errorf("passenger: create graceful pipe: %w", err)
	}
	h.graceRead, h.graceWrite = graceRead, graceWrite

	h.sig = installSignals(h.opts.hardTerminationSignal(), h.opts.softTerminationSignal(), h.triggerDrain)
	h.mon = newLifecycleMonitor(ep, h.ownerPipe, graceRead)

	h.setRunning(true)
	cause := h.runLoop()
	h.setRunning(false)

	h.sig.uninstall()
	h.closeGracePipe()
	h.graceRead.Close()
	h.ep.close()
	h.header.close()

	h.metrics.exits.WithLabelValues(cause).Inc()
	h.logger.logf("loop", "main loop exited: cause=%s iterations=%d processed=%d", cause, h.Iterations(), h.ProcessedRequests())
	return nil
}

// runLoop is the per-iteration body of the main loop, repeated until the
// lifecycle monitor reports there is nothing left to accept.
func (h *Handler) runLoop() string {
	for {
		atomic.AddUint64(&h.iterations, 1)
		h.metrics.iterations.Inc()

		conn, err := h.mon.wait()
		switch {
		case err == nil:
			h.handleConnection(conn)
			h.checkMemoryCeiling()
		case errors.Is(err, errOwnerGone):
			return "owner_gone"
		case errors.Is(err, errGracefulWake):
			return "graceful"
		default:
			// A transient monitor-level error: the listener was closed out
			// from under the accept loop, which is how Cleanup wakes a
			// blocked wait() from another goroutine.
			return "interrupt"
		}
	}
}

// handleConnection decodes, dispatches under a per-request watchdog,
// always closes, and always counts as processed for one accepted
// connection. Every path here, success or failure, ends the same way via
// the deferred cleanup, which is what makes "processed_requests increments
// even for a malformed request" fall out naturally instead of needing a
// special case.
func (h *Handler) handleConnection(conn net.Conn) {
	defer func() {
		conn.Close()
		atomic.AddUint64(&h.processed, 1)
		h.metrics.processed.Inc()
	}()

	if h.sig.takeAbort() {
		h.logger.logf("loop", "%v", sigabrtFault())
		return
	}

	req, err := decodeRequest(conn)
	if err != nil {
		if errors.Is(err, errNoRequest) {
			return
		}
		h.logger.logf("decoder", "%v", err)
		return
	}

	wd := armWatchdog(h.logger, h.metrics.watchdogKills, "request", h.opts.requestTimeout(), syscall.SIGKILL, requestTag(req.Headers))
	start := time.Now()
	h.dispatch(req, conn)
	wd.cancel()
	h.metrics.requestTime.Observe(time.Since(start).Seconds())
}

// dispatch invokes the application callback, recovering a panic into an
// application fault so it cannot take down the main loop: an application
// exception must never take down the whole handler process.
func (h *Handler) dispatch(req *Request, client net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.logf("loop", "%v", applicationFaultErr("callback", fmt.Errorf("panic: %v", r)))
		}
	}()
	h.callback(req, client)
}

// checkMemoryCeiling implements the memory-ceiling half of the Running →
// Draining transition: once resident memory exceeds opts.MemoryLimit,
// draining starts exactly as if SOFT_TERMINATION had been caught.
func (h *Handler) checkMemoryCeiling() {
	if h.opts.MemoryLimit <= 0 {
		return
	}
	rss, ok := residentMemoryBytes()
	if !ok || rss <= h.opts.MemoryLimit {
		return
	}
	h.logger.logf("loop", "resident memory %d exceeds ceiling %d, draining", rss, h.opts.MemoryLimit)
	h.triggerDrain()
}

// triggerDrain enters the Draining state: close the graceful pipe's write
// end (waking the lifecycle monitor once the in-flight request, if any,
// has finished) and arm the termination watchdog exactly once per loop
// lifetime.
func (h *Handler) triggerDrain() {
	h.closeGracePipe()
	h.termOnce.Do(func() {
		h.termWatchdog = armWatchdog(h.logger, h.metrics.watchdogKills, "drain", h.opts.drainTimeout(), syscall.SIGKILL, "graceful-drain")
	})
}

func (h *Handler) closeGracePipe() {
	h.graceCloseOnce.Do(func() {
		h.graceWrite.Close()
	})
}
