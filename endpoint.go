package nvmemi

import (
	"context"
	"time"
)

// defaultTimeout is the generic per-request timeout new endpoints get
// unless their transport overrides it (spec.md §6: 1000ms generic,
// 5000ms for MCTP).
const defaultTimeout = 1000 * time.Millisecond

// Transport is the capability every concrete transport must satisfy,
// modeled as an interface rather than the C vtable-plus-opaque-state
// struct of spec.md §9: a Go interface value already bundles method
// set and state together, so one value per endpoint replaces the
// separate {transport *const, transport_data *void} pair.
type Transport interface {
	// Name identifies the transport, used in diagnostics.
	Name() string
	// MICEnabled reports whether requests/responses on this transport
	// carry a Message Integrity Check that the submit pipeline must
	// stamp and verify.
	MICEnabled() bool
	// Submit performs one request/response exchange. Implementations
	// own all suspension points (send, receive-wait, receive).
	Submit(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error
}

// TransportCloser is implemented by transports that hold a resource
// (typically a socket) requiring an explicit close.
type TransportCloser interface {
	Close(ep *Endpoint) error
}

// TransportDescriber is implemented by transports that can render a
// short diagnostic string for an endpoint.
type TransportDescriber interface {
	Describe(ep *Endpoint) string
}

// TransportTimeoutChecker is implemented by transports that reject
// some timeout values (e.g. zero, meaning "wait forever", might not be
// supported by every transport).
type TransportTimeoutChecker interface {
	CheckTimeout(ep *Endpoint, timeout time.Duration) error
}

// Endpoint represents one addressable NVMe-MI peer reachable through
// exactly one transport. An Endpoint exclusively owns its transport
// value and its controllers; Root is a non-owning back-reference.
type Endpoint struct {
	root      *Root
	transport Transport

	controllers        []*Controller
	controllersScanned bool

	timeout time.Duration
	mprtMax time.Duration
}

// NewEndpoint registers a new endpoint on root, bound to transport.
// Concrete transport packages (e.g. mctp) call this from their own
// constructors after opening whatever resource the transport needs;
// it is the Go-native equivalent of nvme_mi_init_ep.
func NewEndpoint(root *Root, transport Transport) *Endpoint {
	ep := &Endpoint{
		root:      root,
		transport: transport,
		timeout:   defaultTimeout,
	}
	root.addEndpoint(ep)
	return ep
}

// Root returns the endpoint's owning Root.
func (ep *Endpoint) Root() *Root { return ep.root }

// Transport returns the endpoint's transport value.
func (ep *Endpoint) Transport() Transport { return ep.transport }

// Timeout returns the endpoint's per-request timeout. Zero means wait
// indefinitely.
func (ep *Endpoint) Timeout() time.Duration { return ep.timeout }

// SetTimeout sets the endpoint's per-request timeout. If the
// transport implements TransportTimeoutChecker and rejects the value,
// the endpoint's timeout is left unchanged and the rejection error is
// returned.
func (ep *Endpoint) SetTimeout(timeout time.Duration) error {
	if checker, ok := ep.transport.(TransportTimeoutChecker); ok {
		if err := checker.CheckTimeout(ep, timeout); err != nil {
			return err
		}
	}
	ep.timeout = timeout
	return nil
}

// MprtMax returns the clamp applied to device-advertised MPR wait
// times. Zero means unclamped.
func (ep *Endpoint) MprtMax() time.Duration { return ep.mprtMax }

// SetMprtMax sets the MPR wait clamp.
func (ep *Endpoint) SetMprtMax(max time.Duration) { ep.mprtMax = max }

// Describe renders a short diagnostic string for the endpoint,
// delegating to the transport when it supports it.
func (ep *Endpoint) Describe() string {
	if d, ok := ep.transport.(TransportDescriber); ok {
		return ep.transport.Name() + ": " + d.Describe(ep)
	}
	return ep.transport.Name() + " endpoint"
}

// Controllers returns the endpoint's controllers, in scan order. The
// returned slice must not be mutated by the caller.
func (ep *Endpoint) Controllers() []*Controller {
	return ep.controllers
}

// Close cascades-closes every controller on ep, then closes the
// transport if it supports TransportCloser, then removes ep from its
// Root.
func (ep *Endpoint) Close() {
	// Don't look for controllers during destruction.
	ep.controllersScanned = true
	ep.controllers = nil

	if closer, ok := ep.transport.(TransportCloser); ok {
		if err := closer.Close(ep); err != nil {
			ep.root.logger.WithField("endpoint", ep.Describe()).
				Warnf("transport close failed: %v", err)
		}
	}
	ep.root.removeEndpoint(ep)
}

func (ep *Endpoint) addController(c *Controller) {
	ep.controllers = append(ep.controllers, c)
}
