package wire

import "testing"

func TestMIRequestHeaderMarshal(t *testing.T) {
	h := &MIRequestHeader{
		Hdr:    MsgHdr{Type: MsgTypeNVMe | MsgTypeMIC, NMP: NMP(RORRequest, MessageTypeMI)},
		Opcode: OpcodeMIDataRead,
		Cdw0:   0x01020304,
	}
	b := make([]byte, MIReqHdrLen)
	h.Marshal(b)

	if b[4] != OpcodeMIDataRead {
		t.Fatalf("opcode byte = %#x, want %#x", b[4], OpcodeMIDataRead)
	}
	if b[8] != 0x04 || b[9] != 0x03 || b[10] != 0x02 || b[11] != 0x01 {
		t.Fatalf("cdw0 not little-endian: %x", b[8:12])
	}
}

func TestMIResponseHeaderMarshalUnmarshal(t *testing.T) {
	h := &MIResponseHeader{
		Hdr:    MsgHdr{Type: MsgTypeNVMe | MsgTypeMIC, NMP: NMP(RORResponse, MessageTypeMI)},
		Status: 0,
		NMResp: [3]byte{0x10, 0x20, 0x30},
	}
	b := make([]byte, MIRespHdrLen)
	h.Marshal(b)

	var got MIResponseHeader
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.NMResp != h.NMResp {
		t.Fatalf("NMResp = %v, want %v", got.NMResp, h.NMResp)
	}

	if v := NMRespValue(got.NMResp); v != 0x302010 {
		t.Fatalf("NMRespValue = %#x, want %#x", v, 0x302010)
	}
}

func TestMIResponseHeaderUnmarshalShort(t *testing.T) {
	var h MIResponseHeader
	if err := h.Unmarshal(make([]byte, MIRespHdrLen-1)); err == nil {
		t.Fatal("expected error on short buffer")
	}
}
