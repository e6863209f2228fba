//go:build !linux

package handler

import "runtime"

// residentMemoryBytes falls back to the Go runtime's own view of memory on
// platforms without /proc: a conservative stand-in for resident memory,
// still sufficient to drive the memory ceiling, just less precise than
// Linux's VmRSS.
func residentMemoryBytes() (int64, bool) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return int64(ms.Sys), true
}
