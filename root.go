// Package nvmemi implements the message-layer core of an NVMe-MI
// management library: request/response framing with a per-message
// CRC, a pluggable transport abstraction, and the Admin and
// Management command layers built on top of it.
//
// The concrete MCTP transport lives in the sibling mctp package; this
// package only depends on the small Transport capability interface
// defined here.
package nvmemi

import (
	"github.com/sirupsen/logrus"

	"github.com/codeconstruct/nvme-mi/metrics"
)

// Logger is the structured logging interface a Root writes to. It is
// satisfied directly by *logrus.Logger and *logrus.Entry.
type Logger = logrus.FieldLogger

// Root is a process-scoped container owning a log sink, a log level,
// and every endpoint it has been asked to track. Destroying it
// cascades to close every endpoint it owns.
type Root struct {
	logger   Logger
	logLevel logrus.Level
	metrics  metrics.Hook

	endpoints []*Endpoint
}

// RootOption configures a Root at construction time.
type RootOption func(*Root)

// WithLogger overrides the default logger (logrus.StandardLogger()).
func WithLogger(l Logger) RootOption {
	return func(r *Root) { r.logger = l }
}

// WithLogLevel sets the log level recorded on the Root. It does not
// itself filter log lines; that is controlled by the Logger supplied
// via WithLogger.
func WithLogLevel(level logrus.Level) RootOption {
	return func(r *Root) { r.logLevel = level }
}

// WithMetrics attaches a metrics.Hook invoked at submit boundaries.
// Without this option, or with a nil h, metrics calls are no-ops.
func WithMetrics(h metrics.Hook) RootOption {
	return func(r *Root) {
		if h == nil {
			r.metrics = metrics.Noop()
			return
		}
		r.metrics = h
	}
}

// NewRoot creates a Root with no endpoints.
func NewRoot(opts ...RootOption) *Root {
	r := &Root{
		logger:   logrus.StandardLogger(),
		logLevel: logrus.InfoLevel,
		metrics:  metrics.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close cascades-closes every endpoint the Root owns.
func (r *Root) Close() {
	// Close mutates r.endpoints via removeEndpoint, so iterate over a
	// snapshot rather than the live slice.
	eps := make([]*Endpoint, len(r.endpoints))
	copy(eps, r.endpoints)
	for _, ep := range eps {
		ep.Close()
	}
}

// Endpoints returns the endpoints owned by r, in insertion order. The
// returned slice must not be mutated by the caller.
func (r *Root) Endpoints() []*Endpoint {
	return r.endpoints
}

func (r *Root) addEndpoint(ep *Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

func (r *Root) removeEndpoint(ep *Endpoint) {
	for i, e := range r.endpoints {
		if e == ep {
			r.endpoints = append(r.endpoints[:i], r.endpoints[i+1:]...)
			return
		}
	}
}

// Logger returns the Root's log sink, for use by transports and
// command layers that need to log outside of a *Endpoint method.
func (r *Root) Logger() Logger { return r.logger }

// LogLevel returns the log level recorded on the Root.
func (r *Root) LogLevel() logrus.Level { return r.logLevel }

// Metrics returns the Root's metrics hook (never nil).
func (r *Root) Metrics() metrics.Hook { return r.metrics }
