// Package handler implements the per-worker Request Handler: a long-lived
// object that owns one embedded application instance, listens on a private
// Unix-domain socket, decodes a CGI-like framed request protocol, drives the
// application's callback, streams the response back over the same
// connection, and terminates on a well-defined signal set or on owner-pipe
// death.
//
// A Handler is single-tenant and single-threaded: exactly one goroutine runs
// its main loop, serving requests strictly sequentially. Cleanup may be
// called from any goroutine and is safe to call more than once.
package handler
