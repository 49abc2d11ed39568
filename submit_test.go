package nvmemi

import (
	"context"
	"errors"
	"testing"

	"github.com/codeconstruct/nvme-mi/internal/wire"
)

func TestSubmitRejectsShortHeader(t *testing.T) {
	_, ep, _ := newTestEndpoint(false)
	req := &Request{Header: []byte{0x84, 0x00, 0x00}}
	resp := &Response{Header: make([]byte, 12)}

	err := Submit(context.Background(), ep, req, resp)
	if !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("Submit() = %v, want ErrInvalidArg", err)
	}
}

func TestSubmitRejectsUnalignedPayload(t *testing.T) {
	_, ep, _ := newTestEndpoint(false)
	req := &Request{Header: make([]byte, 12), Payload: make([]byte, 5)}
	resp := &Response{Header: make([]byte, 12)}

	err := Submit(context.Background(), ep, req, resp)
	if !errors.Is(err, ErrInvalidArg) {
		t.Fatalf("Submit() = %v, want ErrInvalidArg", err)
	}
}

func TestSubmitStampsAndVerifiesMIC(t *testing.T) {
	_, ep, tr := newTestEndpoint(true)
	tr.submitFn = respondOK(wire.MessageTypeAdmin, nil)

	hdr := wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)}
	reqBuf := make([]byte, 12)
	hdr.Marshal(reqBuf)
	req := &Request{Header: reqBuf}
	resp := &Response{Header: make([]byte, 12)}

	if err := Submit(context.Background(), ep, req, resp); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	if req.MIC == 0 {
		t.Fatal("request MIC was not stamped")
	}
}

func TestSubmitCRCMismatch(t *testing.T) {
	_, ep, tr := newTestEndpoint(true)
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		respHdr := wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeAdmin)}
		respHdr.Marshal(resp.Header)
		resp.MIC = 0xdeadbeef
		return nil
	}

	hdr := wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)}
	reqBuf := make([]byte, 12)
	hdr.Marshal(reqBuf)
	req := &Request{Header: reqBuf}
	resp := &Response{Header: make([]byte, 12)}

	err := Submit(context.Background(), ep, req, resp)
	if !errors.Is(err, ErrCRCMismatch) {
		t.Fatalf("Submit() = %v, want ErrCRCMismatch", err)
	}

	// S3: the endpoint remains usable for the next submit.
	tr.submitFn = respondOK(wire.MessageTypeAdmin, nil)
	if err := Submit(context.Background(), ep, req, resp); err != nil {
		t.Fatalf("Submit() after CRC mismatch = %v, want success", err)
	}
}

func TestSubmitSlotMismatch(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		// respond with ROR set but slot bit flipped relative to request
		respHdr := wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeAdmin) | 0x1}
		respHdr.Marshal(resp.Header)
		return nil
	}

	hdr := wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)}
	reqBuf := make([]byte, 12)
	hdr.Marshal(reqBuf)
	req := &Request{Header: reqBuf}
	resp := &Response{Header: make([]byte, 12)}

	err := Submit(context.Background(), ep, req, resp)
	if !errors.Is(err, ErrSlotMismatch) {
		t.Fatalf("Submit() = %v, want ErrSlotMismatch", err)
	}
}

func TestSubmitResponseMustHaveRORSet(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		respHdr := wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)}
		respHdr.Marshal(resp.Header)
		return nil
	}

	hdr := wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)}
	reqBuf := make([]byte, 12)
	hdr.Marshal(reqBuf)
	req := &Request{Header: reqBuf}
	resp := &Response{Header: make([]byte, 12)}

	err := Submit(context.Background(), ep, req, resp)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Submit() = %v, want ErrProtocol", err)
	}
}
