package nvmemi

import (
	"context"

	"github.com/codeconstruct/nvme-mi/internal/wire"
)

// fakeTransport is a Transport double driven by tests: submitFn
// populates resp exactly as a real transport would and returns
// whatever error it likes; each call is recorded so tests can assert
// on how many exchanges occurred (spec.md §8's segmented Get Log Page
// properties, in particular).
type fakeTransport struct {
	mic     bool
	submitFn func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error
	calls   []capturedCall
}

type capturedCall struct {
	header  []byte
	payload []byte
}

func (f *fakeTransport) Name() string      { return "fake" }
func (f *fakeTransport) MICEnabled() bool  { return f.mic }

func (f *fakeTransport) Submit(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
	f.calls = append(f.calls, capturedCall{
		header:  append([]byte(nil), req.Header...),
		payload: append([]byte(nil), req.Payload...),
	})
	return f.submitFn(ctx, ep, req, resp)
}

// respondOK fills resp.Header as a well-formed Admin/MI response
// header (status 0, matching command slot and ROR) using the
// caller-supplied class, and copies data into resp.Payload, then
// stamps a valid MIC if the transport requires one.
func respondOK(class uint8, data []byte) func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
	return func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		var hdr wire.MsgHdr
		hdr.Unmarshal(req.Header)
		respHdr := wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, class) | wire.CommandSlot(hdr.NMP)}
		respHdr.Marshal(resp.Header)
		n := copy(resp.Payload, data)
		resp.Payload = resp.Payload[:n]
		if ep.transport.MICEnabled() {
			resp.MIC = wire.MIC(resp.Header, resp.Payload)
		}
		return nil
	}
}

func newTestEndpoint(mic bool) (*Root, *Endpoint, *fakeTransport) {
	root := NewRoot()
	tr := &fakeTransport{mic: mic}
	ep := NewEndpoint(root, tr)
	return root, ep, tr
}
