package nvmemi

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/codeconstruct/nvme-mi/internal/wire"
)

// TestScanEndpointCreatesControllers exercises S1: a controller list
// reply with num=2, ids=[1, 3, 0...] yields exactly two controllers.
func TestScanEndpointCreatesControllers(t *testing.T) {
	_, ep, tr := newTestEndpoint(true)
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		binary.LittleEndian.PutUint16(resp.Payload[0:2], 2)
		binary.LittleEndian.PutUint16(resp.Payload[2:4], 1)
		binary.LittleEndian.PutUint16(resp.Payload[4:6], 3)

		respHdr := wire.MIResponseHeader{
			Hdr: wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeMI)},
		}
		respHdr.Marshal(resp.Header)
		resp.MIC = wire.MIC(resp.Header, resp.Payload)
		return nil
	}

	if err := ScanEndpoint(context.Background(), ep, false); err != nil {
		t.Fatalf("ScanEndpoint() = %v", err)
	}

	ctrls := ep.Controllers()
	if len(ctrls) != 2 {
		t.Fatalf("got %d controllers, want 2", len(ctrls))
	}
	if ctrls[0].ID() != 1 || ctrls[1].ID() != 3 {
		t.Fatalf("got ids %d,%d, want 1,3", ctrls[0].ID(), ctrls[1].ID())
	}
}

func TestScanEndpointIsNoopWithoutForce(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)
	calls := 0
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		calls++
		binary.LittleEndian.PutUint16(resp.Payload[0:2], 0)
		respHdr := wire.MIResponseHeader{
			Hdr: wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeMI)},
		}
		respHdr.Marshal(resp.Header)
		return nil
	}

	if err := ScanEndpoint(context.Background(), ep, false); err != nil {
		t.Fatalf("ScanEndpoint() = %v", err)
	}
	if err := ScanEndpoint(context.Background(), ep, false); err != nil {
		t.Fatalf("ScanEndpoint() = %v", err)
	}
	if calls != 1 {
		t.Fatalf("got %d exchanges, want 1 (second scan should be a no-op)", calls)
	}
}

func TestScanEndpointForceDestroysExistingControllers(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)
	first := true
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		if first {
			binary.LittleEndian.PutUint16(resp.Payload[0:2], 1)
			binary.LittleEndian.PutUint16(resp.Payload[2:4], 5)
			first = false
		} else {
			binary.LittleEndian.PutUint16(resp.Payload[0:2], 1)
			binary.LittleEndian.PutUint16(resp.Payload[2:4], 9)
		}
		respHdr := wire.MIResponseHeader{
			Hdr: wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeMI)},
		}
		respHdr.Marshal(resp.Header)
		return nil
	}

	if err := ScanEndpoint(context.Background(), ep, false); err != nil {
		t.Fatalf("ScanEndpoint() = %v", err)
	}
	if len(ep.Controllers()) != 1 || ep.Controllers()[0].ID() != 5 {
		t.Fatalf("unexpected controllers after first scan: %v", ep.Controllers())
	}

	if err := ScanEndpoint(context.Background(), ep, true); err != nil {
		t.Fatalf("ScanEndpoint(force) = %v", err)
	}
	if len(ep.Controllers()) != 1 || ep.Controllers()[0].ID() != 9 {
		t.Fatalf("unexpected controllers after forced rescan: %v", ep.Controllers())
	}
}

func TestScanEndpointRejectsOversizedCount(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		binary.LittleEndian.PutUint16(resp.Payload[0:2], controllerListMax+1)
		respHdr := wire.MIResponseHeader{
			Hdr: wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeMI)},
		}
		respHdr.Marshal(resp.Header)
		return nil
	}

	err := ScanEndpoint(context.Background(), ep, false)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("ScanEndpoint() = %v, want ErrProtocol", err)
	}
}
