package handler

import "fmt"

// class classifies an error the way the main loop needs to react to it.
// Grounded on the three-way Transient/Invalid/Fatal split used by
// C360Studio-semstreams's errors package, extended to the five classes
// this package actually distinguishes.
type class uint8

const (
	classTransientConnection class = iota // read/write error, broken pipe, unexpected close
	classMalformedRequest                 // header too large, unparseable metadata
	classLoopTermination                  // EOF / Interrupt: clean exit, not an error
	classApplicationFault                 // escaped from the callback
	classFatal                            // watchdog expiry; the process dies by signal
)

// handlerError carries a class alongside the wrapped cause so the main loop
// can switch on Class() without string matching, and so diagnostic log lines
// can still print the underlying error.
type handlerError struct {
	class class
	op    string // component tag, e.g. "decoder", "monitor"
	err   error
}

func (e *handlerError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.op, classNames[e.class])
	}
	return fmt.Sprintf("%s: %s: %v", e.op, classNames[e.class], e.err)
}

func (e *handlerError) Unwrap() error { return e.err }

var classNames = map[class]string{
	classTransientConnection: "transient connection error",
	classMalformedRequest:    "malformed request",
	classLoopTermination:     "loop termination",
	classApplicationFault:    "application fault",
	classFatal:               "fatal",
}

func transientErr(op string, err error) error {
	return &handlerError{class: classTransientConnection, op: op, err: err}
}
func malformedErr(op string, err error) error {
	return &handlerError{class: classMalformedRequest, op: op, err: err}
}
func applicationFaultErr(op string, err error) error {
	return &handlerError{class: classApplicationFault, op: op, err: err}
}

// errHeaderTooLarge is returned by the decoder when the 32-bit length
// prefix exceeds MaxHeaderSize.
var errHeaderTooLarge = malformedErr("decoder", fmt.Errorf("request metadata exceeds %d bytes", MaxHeaderSize))

// errNoRequest signals a clean end-of-connection at the framing boundary
// (EOF while reading the 4-byte length prefix). It is not logged as an
// error: it is the expected shape of a connection the peer closed politely.
var errNoRequest = fmt.Errorf("no request")

// sigabrtError is what SIGABRT is translated into, so a test can observe
// SIGABRT as a synchronous failure instead of a process death.
type sigabrtError struct{}

func (sigabrtError) Error() string { return "SIGABRT" }
