// Package gatewaymetrics holds the process-wide counters the gateway
// exposes: the single piece of shared mutable state the core streaming
// path touches, besides the logger. Modeled on the teacher's
// streamer.metricsCounters — a plain struct of atomic counters, no
// third-party metrics registry, because nothing in this repository's
// scope needs an exported metrics surface (see DESIGN.md).
package gatewaymetrics

import "sync/atomic"

// ActiveRequests is the number of in-flight gateway requests that passed
// the method and path-prefix checks, whether they end up served as a
// zip-stream or proxied through verbatim.
var ActiveRequests atomic.Int64

// BytesServed is the cumulative count of archive bytes written to
// clients, across all requests since process start.
var BytesServed atomic.Int64

// RequestErrors is the cumulative count of requests that ended in a
// non-2xx response or a mid-stream failure.
var RequestErrors atomic.Int64

// Snapshot is a point-in-time, JSON-friendly view of the counters.
type Snapshot struct {
	ActiveRequests int64 `json:"active_requests"`
	BytesServed    int64 `json:"bytes_served"`
	RequestErrors  int64 `json:"request_errors"`
}

// Get returns the current counter values.
func Get() Snapshot {
	return Snapshot{
		ActiveRequests: ActiveRequests.Load(),
		BytesServed:    BytesServed.Load(),
		RequestErrors:  RequestErrors.Load(),
	}
}
