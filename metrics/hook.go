// Package metrics defines the observability hook a Root can be given
// to count submit outcomes, grounded on the MetricHook pattern in
// rocketbitz-libfabric-go/client: a small interface with interchangeable
// Prometheus and OpenTelemetry backends selected by the embedding
// program, not by this library.
package metrics

// Hook receives counts of submit-pipeline outcomes. Implementations
// must be safe to call from a single goroutine per endpoint; this
// package places no concurrency requirement beyond that, matching the
// single-outstanding-request model of the core (spec.md §5).
type Hook interface {
	// SubmitOK is invoked after a submit completes successfully.
	SubmitOK()
	// SubmitError is invoked after a submit fails, tagged with the
	// kind of the error the submit returned (invalid-arg, transport,
	// timeout, protocol, crc-mismatch, slot-mismatch). A reply with a
	// non-zero device status completes the submit successfully and is
	// counted by SubmitOK; the command layers report that status to
	// their caller without invoking the hook.
	SubmitError(kind string)
	// MPRRetry is invoked once per More Processing Required retry
	// the MCTP transport performs within a single submit call.
	MPRRetry()
	// TagAllocFallback is invoked the first time an endpoint's
	// transport falls back to the generic tag-owner sentinel because
	// the host kernel lacks explicit tag allocation support.
	TagAllocFallback()
}

// noop is the default Hook used when a Root is not given one.
type noop struct{}

func (noop) SubmitOK()           {}
func (noop) SubmitError(string)  {}
func (noop) MPRRetry()           {}
func (noop) TagAllocFallback()   {}

// Noop returns a Hook that discards every event.
func Noop() Hook { return noop{} }
