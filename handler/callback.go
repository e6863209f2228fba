package handler

import "net"

// Callback is the application hook the main loop drives: it hands Callback
// one decoded Request and the raw client connection, and it must write a
// complete response to client before returning. The callback owns framing
// the response; it must not close client, and must not retain req or
// client past return.
//
// A panic inside Callback is recovered by the main loop and logged as an
// application fault; it does not take down the process or the loop, and
// the connection is still closed and counted as processed.
type Callback func(req *Request, client net.Conn)
