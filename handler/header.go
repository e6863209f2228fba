package handler

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// baseHeader is the identification string reported in the X-Powered-By
// response header, with the version placeholder filled in by the module's
// own version.
const baseHeader = "Phusion Passenger (mod_rails/mod_rack) " + Version

// Version is the handler core's version, reported in PassengerHeader.
const Version = "1.0.0"

// enterpriseSuffix is appended when the enterprise marker file is present.
const enterpriseSuffix = ", Enterprise Edition"

// headerSource resolves the PASSENGER_HEADER value an application callback
// emits in an X-Powered-By response header. It checks the marker file once
// at construction, then keeps a
// best-effort fsnotify watch on the marker's parent directory (grounded on
// zachthedev-agentcord's use of fsnotify for config hot-reload) so a
// long-lived handler notices a license file appearing or disappearing
// without restarting.
type headerSource struct {
	markerPath   string
	isEnterprise atomic.Bool
	watcher      *fsnotify.Watcher
}

// newHeaderSource resolves the initial enterprise flag with a plain stat
// and, if markerPath is non-empty, starts a watch. Watch failures are
// logged and otherwise ignored: this only affects one response header
// value, never request handling.
func newHeaderSource(markerPath string, logger *diagLogger) *headerSource {
	h := &headerSource{markerPath: markerPath}
	h.isEnterprise.Store(statExists(markerPath))

	if markerPath == "" {
		return h
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.logf("header", "fsnotify unavailable, enterprise marker is static: %v", err)
		return h
	}
	dir := filepath.Dir(markerPath)
	if err := watcher.Add(dir); err != nil {
		logger.logf("header", "cannot watch %s for enterprise marker: %v", dir, err)
		watcher.Close()
		return h
	}
	h.watcher = watcher
	go h.watch(logger)
	return h
}

func (h *headerSource) watch(logger *diagLogger) {
	for event := range h.watcher.Events {
		if event.Name != h.markerPath {
			continue
		}
		switch {
		case event.Has(fsnotify.Create):
			h.isEnterprise.Store(true)
		case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
			h.isEnterprise.Store(statExists(h.markerPath))
		}
		logger.logf("header", "enterprise marker changed: enterprise=%v", h.isEnterprise.Load())
	}
}

func (h *headerSource) close() {
	if h != nil && h.watcher != nil {
		h.watcher.Close()
	}
}

// header returns the current PASSENGER_HEADER value.
func (h *headerSource) header() string {
	if h != nil && h.isEnterprise.Load() {
		return baseHeader + enterpriseSuffix
	}
	return baseHeader
}

func statExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
