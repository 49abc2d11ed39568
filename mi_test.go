package nvmemi

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/codeconstruct/nvme-mi/internal/wire"
)

// TestReadMIDataControllerInfoEncodesCtrlIDOnce pins the correction to
// the open question in spec.md §9: ctrl_id (host order) must appear in
// the low 16 bits of cdw0 with no separate byte-swap before the single
// little-endian wire write MIRequestHeader.Marshal performs.
func TestReadMIDataControllerInfoEncodesCtrlIDOnce(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)

	var gotCdw0 uint32
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		gotCdw0 = binary.LittleEndian.Uint32(req.Header[8:12])
		respHdr := wire.MIResponseHeader{
			Hdr: wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeMI)},
		}
		respHdr.Marshal(resp.Header)
		resp.Payload = resp.Payload[:32]
		return nil
	}

	dst := make([]byte, 32)
	ctrlID := uint16(0x1234)
	if err := ReadMIDataControllerInfo(context.Background(), ep, ctrlID, dst); err != nil {
		t.Fatalf("ReadMIDataControllerInfo() = %v", err)
	}

	want := uint32(MIDataTypeControllerInfo)<<24 | uint32(ctrlID)
	if gotCdw0 != want {
		t.Fatalf("cdw0 = %#08x, want %#08x", gotCdw0, want)
	}
}

func TestReadMIDataFixedSizeMismatchIsProtocolError(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		respHdr := wire.MIResponseHeader{
			Hdr: wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeMI)},
		}
		respHdr.Marshal(resp.Header)
		resp.Payload = resp.Payload[:16] // short of the fixed 32-byte structure
		return nil
	}

	err := ReadMIDataSubsystemInfo(context.Background(), ep, make([]byte, 32))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("ReadMIDataSubsystemInfo() = %v, want ErrProtocol", err)
	}
}

func TestReadMIDataControllerListAcceptsAnyLength(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		respHdr := wire.MIResponseHeader{
			Hdr: wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeMI)},
		}
		respHdr.Marshal(resp.Header)
		binary.LittleEndian.PutUint16(resp.Payload[0:2], 2)
		binary.LittleEndian.PutUint16(resp.Payload[2:4], 1)
		binary.LittleEndian.PutUint16(resp.Payload[4:6], 3)
		resp.Payload = resp.Payload[:6]
		return nil
	}

	dst := make([]byte, controllerListBufLen)
	n, err := ReadMIDataControllerList(context.Background(), ep, 0, dst)
	if err != nil {
		t.Fatalf("ReadMIDataControllerList() = %v", err)
	}
	if n != 6 {
		t.Fatalf("got %d bytes, want 6", n)
	}
}

func TestSubsystemHealthStatusPollFixedSize(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		var reqHdr wire.MIRequestHeader
		reqHdr.Unmarshal(req.Header)
		if reqHdr.Cdw1&(1<<31) == 0 {
			t.Fatalf("clear bit not set in cdw1: %#x", reqHdr.Cdw1)
		}
		respHdr := wire.MIResponseHeader{
			Hdr: wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeMI)},
		}
		respHdr.Marshal(resp.Header)
		return nil
	}

	if err := SubsystemHealthStatusPoll(context.Background(), ep, true, make([]byte, 32)); err != nil {
		t.Fatalf("SubsystemHealthStatusPoll() = %v", err)
	}
}

func TestConfigurationGetReturnsNMResp(t *testing.T) {
	_, ep, tr := newTestEndpoint(false)
	tr.submitFn = func(ctx context.Context, ep *Endpoint, req *Request, resp *Response) error {
		respHdr := wire.MIResponseHeader{
			Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORResponse, wire.MessageTypeMI)},
			NMResp: [3]byte{0x01, 0x02, 0x03},
		}
		respHdr.Marshal(resp.Header)
		return nil
	}

	got, err := ConfigurationGet(context.Background(), ep, 0, 0)
	if err != nil {
		t.Fatalf("ConfigurationGet() = %v", err)
	}
	if got != 0x030201 {
		t.Fatalf("ConfigurationGet() = %#x, want 0x030201", got)
	}
}
