package wire

import (
	"reflect"
	"testing"
)

func TestAdminRequestHeaderMarshalUnmarshal(t *testing.T) {
	h := &AdminRequestHeader{
		Hdr:    MsgHdr{Type: MsgTypeNVMe | MsgTypeMIC, NMP: NMP(RORRequest, MessageTypeAdmin)},
		Opcode: 0x06,
		CtrlID: 0x1234,
		Cdw1:   0xaabbccdd,
		Cdw10:  0x00010203,
		Cdw11:  0x04050607,
		Cdw14:  0x42,
		Doff:   0x100,
		Dlen:   0x1000,
		Flags:  AdminFlagDlenValid | AdminFlagDoffValid,
	}

	b := make([]byte, AdminReqHdrLen)
	h.Marshal(b)

	var got AdminRequestHeader
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !reflect.DeepEqual(*h, got) {
		t.Fatalf("round-trip mismatch:\n got  %+v\n want %+v", got, *h)
	}
}

func TestAdminRequestHeaderMarshalIsLittleEndian(t *testing.T) {
	h := &AdminRequestHeader{CtrlID: 0x0102}
	b := make([]byte, AdminReqHdrLen)
	h.Marshal(b)

	if b[6] != 0x02 || b[7] != 0x01 {
		t.Fatalf("CtrlID not little-endian: got %#x %#x", b[6], b[7])
	}
}

func TestAdminResponseHeaderMarshalUnmarshal(t *testing.T) {
	h := &AdminResponseHeader{
		Hdr:    MsgHdr{Type: MsgTypeNVMe | MsgTypeMIC, NMP: NMP(RORResponse, MessageTypeAdmin)},
		Status: 0,
		Cdw0:   0xdeadbeef,
	}

	b := make([]byte, AdminRespHdrLen)
	h.Marshal(b)

	var got AdminResponseHeader
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(*h, got) {
		t.Fatalf("round-trip mismatch:\n got  %+v\n want %+v", got, *h)
	}
}

func TestAdminResponseHeaderUnmarshalShort(t *testing.T) {
	var h AdminResponseHeader
	if err := h.Unmarshal(make([]byte, AdminRespHdrLen-1)); err == nil {
		t.Fatal("expected error on short buffer")
	}
}
