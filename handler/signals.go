package handler

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// otherTrappableSignals is reset to default disposition on loop entry: a
// fixed list of common signals the loop does not itself give special
// meaning to. Signals not in the list (for example SIGCHLD, SIGCONT,
// SIGPROF) keep whatever disposition they already had. A Handler
// owns process-wide signal discipline exclusively while its loop runs, so
// none of these has been touched by this package before loop entry:
// resetting them to default *is* restoring their prior disposition,
// because default is what they already were.
//
// SIGKILL, SIGSTOP (untrappable) and the synchronous fault signals SIGSEGV,
// SIGBUS, SIGFPE, SIGILL, plus SIGURG (reserved by the Go runtime for
// goroutine preemption since Go 1.14) are deliberately excluded: resetting
// those would either do nothing or corrupt the runtime, not a meaningful
// disposition reset.
var otherTrappableSignals = []os.Signal{
	syscall.SIGINT, syscall.SIGQUIT, syscall.SIGPIPE, syscall.SIGALRM,
	syscall.SIGTSTP, syscall.SIGTTIN, syscall.SIGTTOU, syscall.SIGIO,
	syscall.SIGWINCH, syscall.SIGUSR2,
}

// signalDiscipline installs and later undoes this handler's signal
// dispositions, translated into the nearest faithful Go rendition:
//
//   - SIGHUP is ignored.
//   - SIGABRT is captured and turned into a flag the main loop checks at
//     the next iteration checkpoint, standing in for a synchronous
//     failure: Go has no mechanism to inject an exception into an
//     arbitrary running goroutine the way Ruby's Kernel#trap does, so the
//     nearest faithful rendition observes it at the next checkpoint
//     instead of truly mid-callback — see DESIGN.md.
//   - HARD_TERMINATION keeps the OS default disposition, which for
//     SIGTERM means the kernel kills the process immediately rather than
//     unwinding through this loop's own cleanup path. That is also why
//     the Running → Exited transition for hard-termination skips
//     Draining entirely: there is no Go code running that transition at
//     all, the process is simply gone.
//   - SOFT_TERMINATION is captured and invokes onSoft (close the graceful
//     pipe's write end and arm the termination watchdog).
type signalDiscipline struct {
	hard, soft syscall.Signal
	sigCh      chan os.Signal
	abrt       atomic.Bool
	onSoft     func()
}

func installSignals(hard, soft syscall.Signal, onSoft func()) *signalDiscipline {
	d := &signalDiscipline{hard: hard, soft: soft, onSoft: onSoft}

	signal.Reset(otherTrappableSignals...)
	signal.Ignore(syscall.SIGHUP)
	signal.Reset(hard) // keep/restore OS default disposition

	d.sigCh = make(chan os.Signal, 8)
	signal.Notify(d.sigCh, syscall.SIGABRT, soft)

	go d.dispatch()
	return d
}

func (d *signalDiscipline) dispatch() {
	for sig := range d.sigCh {
		switch sig {
		case d.soft:
			d.onSoft()
		case syscall.SIGABRT:
			d.abrt.Store(true)
		}
	}
}

// takeAbort reports whether SIGABRT arrived since the last call, clearing
// the flag.
func (d *signalDiscipline) takeAbort() bool {
	return d.abrt.Swap(false)
}

// uninstall reinstalls every disposition this Handler changed on loop
// exit.
func (d *signalDiscipline) uninstall() {
	signal.Stop(d.sigCh)
	close(d.sigCh)
	signal.Reset(syscall.SIGHUP)
	// otherTrappableSignals and hard were already left at (or returned
	// to) default disposition above; soft/SIGABRT just had their only
	// subscriber removed by signal.Stop, which os/signal documents as
	// restoring the signal to its pre-Notify behavior.
}

// sigabrtFault is the error the main loop treats a pending SIGABRT flag
// as: a synchronous failure rather than a process death.
func sigabrtFault() error {
	return sigabrtError{}
}
