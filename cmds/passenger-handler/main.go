// Command passenger-handler runs one Request Handler main loop as a worker
// process: it is spawned by a supervising process with the read end of an
// owner pipe inherited as an extra file descriptor, decodes requests off a
// Unix-domain socket it creates itself, and reports that socket's name on
// stdout so the supervisor can hand it out to clients.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/spohlenz/passenger/handler"
)

func main() {
	var (
		ownerFD    = flag.Int("owner-fd", 0, "file descriptor of the owner pipe's read end, inherited from the supervisor")
		configPath = flag.String("config", "", "path to a handler options TOML file")
	)
	flag.Parse()

	opts := handler.HandlerOptions{}
	if *configPath != "" {
		loaded, err := handler.LoadOptions(*configPath)
		if err != nil {
			log.Fatalf("passenger-handler: load options: %v", err)
		}
		opts = loaded
	}

	ownerPipe := os.NewFile(uintptr(*ownerFD), "owner-pipe")
	if ownerPipe == nil {
		log.Fatalf("passenger-handler: invalid owner fd %d", *ownerFD)
	}

	var h *handler.Handler
	h = handler.New(ownerPipe, func(req *handler.Request, client net.Conn) {
		echoCallback(h, req, client)
	}, opts)
	h.StartMainLoopThread()

	fmt.Println(h.SocketName())

	// The loop ends on owner-pipe EOF or a soft-termination drain; a
	// hard-termination signal ends the process directly.
	for h.IsRunning() {
		time.Sleep(100 * time.Millisecond)
	}
	h.Cleanup() // joins the loop, so the socket is released before exit
}

// echoCallback is a placeholder application: it reports the decoded
// metadata back to the client as a minimal CGI-style response, so the
// binary is runnable end to end without wiring in a real web framework.
func echoCallback(h *handler.Handler, req *handler.Request, client net.Conn) {
	fmt.Fprintf(client, "Status: 200 OK\r\n")
	fmt.Fprintf(client, "Content-Type: text/plain\r\n")
	fmt.Fprintf(client, "X-Powered-By: %s\r\n\r\n", h.PassengerHeader())
	fmt.Fprintf(client, "REQUEST_METHOD=%s\n", req.Headers["REQUEST_METHOD"])
	fmt.Fprintf(client, "REQUEST_URI=%s\n", req.Headers["REQUEST_URI"])
	fmt.Fprintf(client, "CONTENT_LENGTH=%s\n", req.Headers["CONTENT_LENGTH"])
	io.Copy(io.Discard, req.Body)
}
