package nvmemi

import (
	"context"

	"github.com/google/uuid"

	"github.com/codeconstruct/nvme-mi/internal/wire"
)

// correlationIDKey is the context key Submit attaches its per-call
// correlation id under, so a transport can tag its own log lines (an
// MPR retry, say) with the id Submit itself logs.
type correlationIDKey struct{}

// CorrelationID returns the correlation id Submit attached to ctx, if
// any. Transports use this to log MPR retries and other in-flight
// events under the same id as the surrounding Submit call.
func CorrelationID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(correlationIDKey{}).(uuid.UUID)
	return id, ok
}

// Submit runs one request/response exchange over ep: it validates req,
// stamps its MIC when the transport requires one, delegates to the
// transport, then verifies the response MIC and header before
// returning. It is the sole entry point the Admin and MI command
// layers build on.
func Submit(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
	id := uuid.New()
	ctx = context.WithValue(ctx, correlationIDKey{}, id)
	log := ep.root.logger.WithField("correlation_id", id)

	if err := validateRequest(req); err != nil {
		ep.root.metrics.SubmitError(err.(*Error).Kind.String())
		return err
	}
	if err := validateResponseBuffers(resp); err != nil {
		ep.root.metrics.SubmitError(err.(*Error).Kind.String())
		return err
	}

	micEnabled := ep.transport.MICEnabled()
	if micEnabled {
		req.MIC = wire.MIC(req.Header, req.Payload)
	}

	if err := ep.transport.Submit(ctx, ep, req, resp); err != nil {
		kind := KindTransport
		if e, ok := err.(*Error); ok {
			kind = e.Kind
		}
		ep.root.metrics.SubmitError(kind.String())
		return err
	}

	if micEnabled {
		want := wire.MIC(resp.Header, resp.Payload)
		if resp.MIC != want {
			log.WithField("endpoint", ep.Describe()).
				Warnf("MIC mismatch: got 0x%08x want 0x%08x", resp.MIC, want)
			err := newErr(KindCRCMismatch, "response MIC did not verify")
			ep.root.metrics.SubmitError(err.Kind.String())
			return err
		}
	}

	if err := validateResponseHeader(req.Header, resp.Header); err != nil {
		ep.root.metrics.SubmitError(err.(*Error).Kind.String())
		return err
	}

	ep.root.metrics.SubmitOK()
	return nil
}
