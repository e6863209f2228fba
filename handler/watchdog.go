package handler

import (
	"os"
	"syscall"
	"time"
)

// Default per-request timeout is 60s, default drain timeout is 30s.
const (
	requestWatchdogTimeout     = 60 * time.Second
	terminationWatchdogTimeout = 30 * time.Second
)

// watchdog is a scoped background timer: arming it starts a timer;
// cancelling it (on scope exit) stops that timer. If the timer fires
// first, it delivers a signal to this process.
//
// time.Timer.Stop is documented safe to call concurrently with the timer's
// function already running, and a no-op if the function already ran —
// exactly the guarantee needed to survive being cancelled while its timer
// is firing, so no extra synchronization is needed here.
type watchdog struct {
	timer *time.Timer
}

// armWatchdog starts a watchdog that, unless cancelled within timeout,
// delivers sig to this process. tag is diagnostic text logged at fire
// time, typically a "SERVER_NAME/REQUEST_URI"-shaped description of what
// was being watched.
func armWatchdog(logger *diagLogger, kills *watchdogKillCounter, phase string, timeout time.Duration, sig syscall.Signal, tag string) *watchdog {
	w := &watchdog{}
	w.timer = time.AfterFunc(timeout, func() {
		logger.logf("watchdog", "%s watchdog expired after %s (%s): sending %v to pid %d", phase, timeout, tag, sig, os.Getpid())
		if kills != nil {
			kills.inc(phase)
		}
		selfSignal(sig)
	})
	return w
}

// cancel stops the watchdog. Safe on a nil watchdog and safe to call more
// than once.
func (w *watchdog) cancel() {
	if w == nil {
		return
	}
	w.timer.Stop()
}

// selfSignal delivers sig to this process, never to a child: the signal
// must reach the process whose watchdog expired, which rules out shelling
// out to an external timeout/watchdog utility that would signal a
// subprocess instead.
func selfSignal(sig syscall.Signal) {
	syscall.Kill(os.Getpid(), sig)
}
