package handler

import "github.com/prometheus/client_golang/prometheus"

// metrics holds every Prometheus collector the Handler reports, namespaced
// and labelled the way C360Studio-semstreams's metric package structures
// its platform-level counters and the other_examples streaming-daemon
// instruments its accept loop — the two closest domain analogues in the
// retrieval pack to a socket accept loop.
type metrics struct {
	iterations    prometheus.Counter
	processed     prometheus.Counter
	exits         *prometheus.CounterVec   // labelled by cause
	watchdogKills *watchdogKillCounter     // labelled by phase
	requestTime   prometheus.Histogram
}

// watchdogKillCounter is a tiny named wrapper around a CounterVec so
// watchdog.go (which knows nothing about Prometheus label names) can
// increment it with a plain phase string.
type watchdogKillCounter struct {
	vec *prometheus.CounterVec
}

func (c *watchdogKillCounter) inc(phase string) {
	if c == nil || c.vec == nil {
		return
	}
	c.vec.WithLabelValues(phase).Inc()
}

// newMetrics registers every collector against reg. Passing
// prometheus.NewRegistry() (instead of the global DefaultRegisterer) keeps
// tests free of cross-test collector collisions; production embedders pass
// their own server-wide registry, since serving /metrics is the embedding
// web server's job, not this package's — no network ports originate here.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "passenger",
			Subsystem: "handler",
			Name:      "iterations_total",
			Help:      "Number of main loop iterations, incremented before each accept.",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "passenger",
			Subsystem: "handler",
			Name:      "requests_processed_total",
			Help:      "Number of requests fully handled, regardless of application outcome.",
		}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passenger",
			Subsystem: "handler",
			Name:      "exit_total",
			Help:      "Number of main loop exits, labelled by cause.",
		}, []string{"cause"}),
		watchdogKills: &watchdogKillCounter{vec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passenger",
			Subsystem: "handler",
			Name:      "watchdog_kills_total",
			Help:      "Number of times a watchdog fired and sent a signal to this process, labelled by phase.",
		}, []string{"phase"})},
		requestTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "passenger",
			Subsystem: "handler",
			Name:      "request_duration_seconds",
			Help:      "Time spent inside the application callback per request.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.iterations, m.processed, m.exits, m.watchdogKills.vec, m.requestTime)
	}
	return m
}
