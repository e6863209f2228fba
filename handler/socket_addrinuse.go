package handler

import (
	"errors"
	"syscall"
)

// isAddrInUse reports whether err wraps EADDRINUSE, the collision that
// triggers socket-name regeneration and an unbounded retry.
func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
