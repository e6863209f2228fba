package handler

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/time/rate"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// diagLogger is where every component writes component-tagged diagnostic
// lines.
//
// Grounded on the teacher's hemi/libraries/logger: a background goroutine
// drains a queue of pending lines so logging never blocks the main loop
// on disk I/O, and a full queue drops the newest line rather than block
// the caller, the same trade the teacher's logQueue.log makes when it
// runs out of free blocks. The teacher's custom double-buffered block
// allocator is replaced by a plain buffered channel (the idiomatic Go
// shape for a bounded producer/consumer queue), and its hand-rolled
// day/hour file-switching rotation is replaced by
// gopkg.in/natefinch/lumberjack.v2's size/age-based rotation.
type diagLogger struct {
	std     *log.Logger
	limiter *rate.Limiter
	lines   chan string
}

// newDiagLogger writes to path through a lumberjack.Logger for rotation
// (an empty path writes to stderr instead), and returns a logger that
// rate-limits to 50 lines per second, with a burst allowance of 100 — so
// a client flooding malformed requests cannot turn the diagnostic log
// itself into an amplified denial-of-service.
func newDiagLogger(path string) *diagLogger {
	var w io.Writer
	if path == "" {
		w = os.Stderr
	} else {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
	}
	l := &diagLogger{
		std:     log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
		limiter: rate.NewLimiter(rate.Limit(50), 100),
		lines:   make(chan string, 256),
	}
	go l.drain()
	return l
}

// drain is the saver goroutine: it owns the only reader of lines, so the
// underlying log.Logger (and the file it wraps) is only ever touched from
// this one goroutine.
func (l *diagLogger) drain() {
	for line := range l.lines {
		l.std.Print(line)
	}
}

func (l *diagLogger) logf(component, format string, args ...any) {
	if l == nil {
		return
	}
	if !l.limiter.Allow() {
		return
	}
	line := fmt.Sprintf("[%s] %s\n", component, fmt.Sprintf(format, args...))
	select {
	case l.lines <- line:
	default:
		// Queue full: drop the line rather than block the caller.
	}
}

// requestTag builds the "SERVER_NAME/REQUEST_URI" diagnostic tag attached
// to per-request watchdogs. REQUEST_URI normally carries its own leading
// slash; one is added only when it does not.
func requestTag(headers map[string]string) string {
	uri := headers["REQUEST_URI"]
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	return headers["SERVER_NAME"] + uri
}
