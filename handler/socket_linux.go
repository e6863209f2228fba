//go:build linux

package handler

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// createAbstractEndpoint binds a Linux abstract-namespace Unix socket.
//
// This goes to golang.org/x/sys/unix instead of net.Listen("unix", "@name")
// (which the standard library does support on Linux) because the caller
// needs to tell "address in use, regenerate" apart from "abstract
// namespace unsupported by this OS" by errno, and net's portable error
// wrapping loses that distinction across platforms. At the raw syscall
// layer the two cases are exactly EADDRINUSE vs. "this build isn't even
// compiled for linux" (handled by socket_other.go), so there is nothing
// left to misclassify.
func createAbstractEndpoint() (*endpoint, error) {
	for {
		id := randomHexIdentity(unixPathMax - 2)
		fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		if err != nil {
			return nil, fmt.Errorf("passenger: socket: %w", err)
		}
		sa := &unix.SockaddrUnix{Name: "\x00" + id}
		if err := unix.Bind(fd, sa); err != nil {
			unix.Close(fd)
			if err == unix.EADDRINUSE {
				continue // collision, regenerate and retry unbounded
			}
			return nil, fmt.Errorf("passenger: bind abstract socket: %w", err)
		}
		if err := unix.Listen(fd, BacklogSize); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("passenger: listen abstract socket: %w", err)
		}
		file := os.NewFile(uintptr(fd), id)
		ln, err := net.FileListener(file)
		file.Close() // net.FileListener dup'd fd; this always closes the original, on both paths
		if err != nil {
			return nil, fmt.Errorf("passenger: wrap abstract socket: %w", err)
		}
		return &endpoint{name: id, abstract: true, ln: ln}, nil
	}
}
