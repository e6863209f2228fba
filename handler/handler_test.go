package handler

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sendFramedRequest(t *testing.T, conn net.Conn, pairs map[string]string, body []byte) {
	t.Helper()
	metadata := encodeMetadata(pairs)
	_, err := conn.Write(frame(metadata, body))
	require.NoError(t, err)
}

func newTestHandler(t *testing.T, callback Callback, opts HandlerOptions) (*Handler, *os.File) {
	t.Helper()
	ownerRead, ownerWrite, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { ownerWrite.Close() })

	opts.SetPreferAbstractNamespace(false) // filesystem sockets dial uniformly in tests regardless of platform
	h := New(ownerRead, callback, opts)
	h.StartMainLoopThread()
	t.Cleanup(h.Cleanup)
	return h, ownerWrite
}

// TestHappyPath drives one request through to one response and checks the
// processed count.
func TestHappyPath(t *testing.T) {
	h, _ := newTestHandler(t, func(req *Request, client net.Conn) {
		assert.Equal(t, "GET", req.Headers["REQUEST_METHOD"])
		fmt.Fprint(client, "ok")
	}, HandlerOptions{})

	conn, err := dialHandler(t, h)
	require.NoError(t, err)
	sendFramedRequest(t, conn, map[string]string{"REQUEST_METHOD": "GET", "PATH_INFO": "/"}, nil)
	conn.(*net.UnixConn).CloseWrite()

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))

	assert.Eventually(t, func() bool { return h.ProcessedRequests() == 1 }, time.Second, 10*time.Millisecond)
}

// TestHeaderTooLargeThenSuccess checks that a malformed request still
// counts toward processed_requests, and the loop keeps serving afterward.
func TestHeaderTooLargeThenSuccess(t *testing.T) {
	h, _ := newTestHandler(t, func(req *Request, client net.Conn) {
		fmt.Fprint(client, "ok")
	}, HandlerOptions{})

	bad, err := dialHandler(t, h)
	require.NoError(t, err)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], MaxHeaderSize+1)
	bad.Write(lenBuf[:])
	bad.Close()

	assert.Eventually(t, func() bool { return h.ProcessedRequests() == 1 }, time.Second, 10*time.Millisecond)

	good, err := dialHandler(t, h)
	require.NoError(t, err)
	sendFramedRequest(t, good, map[string]string{"REQUEST_METHOD": "GET"}, nil)
	good.(*net.UnixConn).CloseWrite()

	got, err := io.ReadAll(good)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
	assert.Eventually(t, func() bool { return h.ProcessedRequests() == 2 }, time.Second, 10*time.Millisecond)
}

// TestSoftTerminationDrainsInFlightRequest checks that a SOFT_TERMINATION
// signal during an in-flight request lets that request finish, then the
// loop exits and unlinks the socket file.
func TestSoftTerminationDrainsInFlightRequest(t *testing.T) {
	started := make(chan struct{})
	finish := make(chan struct{})
	h, _ := newTestHandler(t, func(req *Request, client net.Conn) {
		close(started)
		<-finish
		fmt.Fprint(client, "ok")
	}, HandlerOptions{SoftTerminationSignal: syscall.SIGUSR1})

	socketPath := h.SocketName()

	conn, err := dialHandler(t, h)
	require.NoError(t, err)
	sendFramedRequest(t, conn, map[string]string{"REQUEST_METHOD": "GET"}, nil)

	<-started
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	close(finish)
	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))

	select {
	case <-h.loopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("main loop did not exit after soft termination")
	}
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket file must be unlinked on graceful exit")
}

// TestOwnerPipeEOFExitsLoop checks that closing the parent's write end of
// the owner pipe, without any signal, ends the loop the same way a soft
// termination would.
func TestOwnerPipeEOFExitsLoop(t *testing.T) {
	h, ownerWrite := newTestHandler(t, func(req *Request, client net.Conn) {}, HandlerOptions{})

	require.NoError(t, ownerWrite.Close())

	select {
	case <-h.loopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("main loop did not exit after owner pipe EOF")
	}
}

// TestMemoryCeilingTriggersDrain checks that a resident-memory ceiling
// breach drains and exits the loop the same way a caught SOFT_TERMINATION
// does, without needing any signal. A 1-byte ceiling is always exceeded,
// on every platform's memory measurement, so the very first
// post-request check trips it.
func TestMemoryCeilingTriggersDrain(t *testing.T) {
	h, _ := newTestHandler(t, func(req *Request, client net.Conn) {
		fmt.Fprint(client, "ok")
	}, HandlerOptions{MemoryLimit: 1})

	socketPath := h.SocketName()

	conn, err := dialHandler(t, h)
	require.NoError(t, err)
	sendFramedRequest(t, conn, map[string]string{"REQUEST_METHOD": "GET"}, nil)
	conn.(*net.UnixConn).CloseWrite()

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))

	select {
	case <-h.loopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("main loop did not exit after memory ceiling breach")
	}
	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket file must be unlinked on graceful exit")
}

// TestCleanupIsIdempotent checks that calling Cleanup twice is safe and a
// no-op the second time.
func TestCleanupIsIdempotent(t *testing.T) {
	h, _ := newTestHandler(t, func(req *Request, client net.Conn) {}, HandlerOptions{})
	assert.NotPanics(t, func() {
		h.Cleanup()
		h.Cleanup()
	})
}

// TestPerRequestTimeoutKillsProcess checks that an in-flight request
// exceeding its watchdog timeout gets the process SIGKILL'd. It actually
// gets SIGKILL'd by the watchdog, so it runs in a re-exec'd copy of the
// test binary and asserts on the child's exit signal and timing from the
// parent, gating the destructive half behind an environment variable and a
// subprocess because it cannot run in-process.
func TestPerRequestTimeoutKillsProcess(t *testing.T) {
	if os.Getenv("PASSENGER_TEST_TIMEOUT_CHILD") == "1" {
		runTimeoutChild()
		return
	}
	if os.Getenv("PASSENGER_TEST_SIGNALS") == "" {
		t.Skip("set PASSENGER_TEST_SIGNALS=1 to run the self-SIGKILL scenario")
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestPerRequestTimeoutKillsProcess")
	cmd.Env = append(os.Environ(), "PASSENGER_TEST_TIMEOUT_CHILD=1")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	require.NoError(t, cmd.Start())

	start := time.Now()
	err := cmd.Wait()
	elapsed := time.Since(start)

	require.Error(t, err)
	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok)
	assert.Equal(t, syscall.SIGKILL, exitErr.Sys().(syscall.WaitStatus).Signal())
	assert.GreaterOrEqual(t, elapsed, 2*time.Second)
	assert.LessOrEqual(t, elapsed, 5*time.Second)
}

// runTimeoutChild is the subprocess body for TestPerRequestTimeoutKillsProcess:
// a handler with a 2-second request timeout and a callback that sleeps
// longer than that, so the per-request watchdog kills this process.
func runTimeoutChild() {
	ownerRead, ownerWrite, err := os.Pipe()
	if err != nil {
		os.Exit(2)
	}
	defer ownerWrite.Close()

	opts := HandlerOptions{RequestTimeout: 2 * time.Second}
	opts.SetPreferAbstractNamespace(false)
	h := New(ownerRead, func(req *Request, client net.Conn) {
		time.Sleep(10 * time.Second)
	}, opts)
	h.StartMainLoopThread()

	conn, err := dialUnix(h.SocketName(), false)
	if err != nil {
		os.Exit(2)
	}
	conn.Write(frame(encodeMetadata(map[string]string{"REQUEST_METHOD": "GET"}), nil))

	<-make(chan struct{}) // wait to be SIGKILLed
}
