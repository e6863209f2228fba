package handler

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
)

// noAbstractNamespaceSocketsEnv is the environment variable
// abstract-namespace socket selection is gated on: unset or empty prefers
// the abstract namespace; any non-empty value forces filesystem-only
// sockets.
const noAbstractNamespaceSocketsEnv = "PASSENGER_NO_ABSTRACT_NAMESPACE_SOCKETS"

// HandlerOptions is the construction-time parameter bag. Every field has a
// zero value that is the correct default, so an embedder can pass a bare
// HandlerOptions{}.
type HandlerOptions struct {
	// MemoryLimit is the resident-memory ceiling in bytes. 0 means
	// unlimited.
	MemoryLimit int64 `toml:"memory_limit"`

	// preferAbstractNamespace overrides environment detection when
	// explicitly set via SetPreferAbstractNamespace; leave the pointer
	// nil to use PASSENGER_NO_ABSTRACT_NAMESPACE_SOCKETS.
	preferAbstractNamespace *bool

	// DiagnosticLogPath is where component-tagged diagnostic lines are
	// written (rotated via lumberjack). Empty means stderr.
	DiagnosticLogPath string `toml:"diagnostic_log_path"`

	// EnterpriseMarkerPath, if non-empty, is stat'd (and watched) to
	// decide whether PassengerHeader carries the Enterprise Edition
	// suffix.
	EnterpriseMarkerPath string `toml:"enterprise_marker_path"`

	// RequestTimeout and DrainTimeout override the defaults (60s, 30s) —
	// zero means "use the default".
	RequestTimeout time.Duration `toml:"request_timeout"`
	DrainTimeout   time.Duration `toml:"drain_timeout"`

	// HardTerminationSignal and SoftTerminationSignal override the
	// defaults (SIGTERM, SIGUSR1) — zero means "use the default".
	HardTerminationSignal syscall.Signal
	SoftTerminationSignal syscall.Signal

	// MetricsRegisterer receives the handler's Prometheus collectors.
	// nil disables metrics registration (collectors are still created
	// and updated, just never exposed to a scraper).
	MetricsRegisterer prometheus.Registerer
}

// SetPreferAbstractNamespace overrides environment-variable detection. Only
// tests should need this; production embedders control the behavior via
// PASSENGER_NO_ABSTRACT_NAMESPACE_SOCKETS.
func (o *HandlerOptions) SetPreferAbstractNamespace(prefer bool) {
	o.preferAbstractNamespace = &prefer
}

func (o *HandlerOptions) preferAbstract() bool {
	if o.preferAbstractNamespace != nil {
		return *o.preferAbstractNamespace
	}
	return os.Getenv(noAbstractNamespaceSocketsEnv) == ""
}

func (o *HandlerOptions) requestTimeout() time.Duration {
	if o.RequestTimeout > 0 {
		return o.RequestTimeout
	}
	return requestWatchdogTimeout
}

func (o *HandlerOptions) drainTimeout() time.Duration {
	if o.DrainTimeout > 0 {
		return o.DrainTimeout
	}
	return terminationWatchdogTimeout
}

func (o *HandlerOptions) hardTerminationSignal() syscall.Signal {
	if o.HardTerminationSignal != 0 {
		return o.HardTerminationSignal
	}
	return syscall.SIGTERM
}

func (o *HandlerOptions) softTerminationSignal() syscall.Signal {
	if o.SoftTerminationSignal != 0 {
		return o.SoftTerminationSignal
	}
	return syscall.SIGUSR1
}

// rawOptions mirrors the TOML file's shape for the fields that are not
// directly decodable: BurntSushi/toml has no built-in support for decoding
// a duration string ("45s") into a time.Duration, so those two fields are
// read as strings here and converted by LoadOptions.
type rawOptions struct {
	MemoryLimit          int64  `toml:"memory_limit"`
	DiagnosticLogPath    string `toml:"diagnostic_log_path"`
	EnterpriseMarkerPath string `toml:"enterprise_marker_path"`
	RequestTimeout       string `toml:"request_timeout"`
	DrainTimeout         string `toml:"drain_timeout"`
}

// LoadOptions parses a TOML file into HandlerOptions, grounded on the
// "config file, overridable by flags/explicit fields"
// layering the other_examples streaming-daemon uses for its own YAML
// config: LoadOptions only ever fills in what the file states, so fields
// the caller sets afterward on the returned value still win.
func LoadOptions(path string) (HandlerOptions, error) {
	var raw rawOptions
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return HandlerOptions{}, err
	}

	opts := HandlerOptions{
		MemoryLimit:          raw.MemoryLimit,
		DiagnosticLogPath:    raw.DiagnosticLogPath,
		EnterpriseMarkerPath: raw.EnterpriseMarkerPath,
	}
	if raw.RequestTimeout != "" {
		d, err := time.ParseDuration(raw.RequestTimeout)
		if err != nil {
			return opts, fmt.Errorf("passenger: parse request_timeout: %w", err)
		}
		opts.RequestTimeout = d
	}
	if raw.DrainTimeout != "" {
		d, err := time.ParseDuration(raw.DrainTimeout)
		if err != nil {
			return opts, fmt.Errorf("passenger: parse drain_timeout: %w", err)
		}
		opts.DrainTimeout = d
	}
	return opts, nil
}
