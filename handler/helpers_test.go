package handler

import (
	"net"
	"testing"
)

// dialUnix connects to name the way an external client would: prepending
// the abstract-namespace NUL, which is the caller's responsibility rather
// than the handler's, or dialing the filesystem path directly.
func dialUnix(name string, abstract bool) (net.Conn, error) {
	if abstract {
		name = "\x00" + name
	}
	return net.Dial("unix", name)
}

func dialEndpoint(t *testing.T, ep *endpoint) (net.Conn, error) {
	t.Helper()
	return dialUnix(ep.name, ep.abstract)
}

func dialHandler(t *testing.T, h *Handler) (net.Conn, error) {
	t.Helper()
	return dialUnix(h.SocketName(), h.IsAbstractNamespace())
}
