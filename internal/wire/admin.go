package wire

import (
	"encoding/binary"
	"io"
)

// AdminReqHdrLen is the fixed length of an AdminRequestHeader on the wire.
const AdminReqHdrLen = 76

// AdminRespHdrLen is the fixed length of an AdminResponseHeader on the
// wire; it doubles as the minimum response header buffer size the MCTP
// transport accepts for any exchange (status byte plus result
// dword, per original_source/src/nvme/mi-mctp.c's "generic (/error)
// response" comment).
const AdminRespHdrLen = 12

// AdminRequestHeader is the envelope for every NVMe Admin command
// tunnelled inside NVMe-MI, as described in spec.md §4.4, matching
// original_source/src/nvme/mi.c's nvme_mi_admin_req_hdr layout.
//
// Layout (76 bytes, all multi-byte fields little-endian):
//
//	0   : type + nmp (common MsgHdr)
//	4   : opcode
//	5   : flags
//	6-7 : ctrl_id
//	8-27: cdw1..cdw5 (5 dwords)
//	28  : doff
//	32  : dlen
//	36-43: reserved (2 dwords)
//	44-51: cdw8, cdw9
//	52-75: cdw10..cdw15 (6 dwords)
type AdminRequestHeader struct {
	Hdr    MsgHdr
	Opcode uint8
	CtrlID uint16
	Cdw1   uint32
	Cdw2   uint32
	Cdw3   uint32
	Cdw4   uint32
	Cdw5   uint32
	Doff   uint32
	Dlen   uint32
	Cdw8   uint32
	Cdw9   uint32
	Cdw10  uint32
	Cdw11  uint32
	Cdw12  uint32
	Cdw13  uint32
	Cdw14  uint32
	Cdw15  uint32
	Flags  uint8
}

// Admin request flag bits (spec.md §4.4).
const (
	AdminFlagDlenValid uint8 = 0x1
	AdminFlagDoffValid uint8 = 0x2
)

// Marshal encodes h into b, which must be at least AdminReqHdrLen bytes.
func (h *AdminRequestHeader) Marshal(b []byte) {
	_ = b[AdminReqHdrLen-1]
	h.Hdr.Marshal(b[0:4])
	b[4] = h.Opcode
	b[5] = h.Flags
	binary.LittleEndian.PutUint16(b[6:8], h.CtrlID)
	binary.LittleEndian.PutUint32(b[8:12], h.Cdw1)
	binary.LittleEndian.PutUint32(b[12:16], h.Cdw2)
	binary.LittleEndian.PutUint32(b[16:20], h.Cdw3)
	binary.LittleEndian.PutUint32(b[20:24], h.Cdw4)
	binary.LittleEndian.PutUint32(b[24:28], h.Cdw5)
	binary.LittleEndian.PutUint32(b[28:32], h.Doff)
	binary.LittleEndian.PutUint32(b[32:36], h.Dlen)
	b[36], b[37], b[38], b[39] = 0, 0, 0, 0
	b[40], b[41], b[42], b[43] = 0, 0, 0, 0
	binary.LittleEndian.PutUint32(b[44:48], h.Cdw8)
	binary.LittleEndian.PutUint32(b[48:52], h.Cdw9)
	binary.LittleEndian.PutUint32(b[52:56], h.Cdw10)
	binary.LittleEndian.PutUint32(b[56:60], h.Cdw11)
	binary.LittleEndian.PutUint32(b[60:64], h.Cdw12)
	binary.LittleEndian.PutUint32(b[64:68], h.Cdw13)
	binary.LittleEndian.PutUint32(b[68:72], h.Cdw14)
	binary.LittleEndian.PutUint32(b[72:76], h.Cdw15)
}

// Unmarshal decodes an AdminRequestHeader from b.
//
// Unmarshal exists for the generic Admin transfer escape hatch and for
// tests; most callers only ever marshal a request.
func (h *AdminRequestHeader) Unmarshal(b []byte) error {
	if len(b) < AdminReqHdrLen {
		return io.ErrUnexpectedEOF
	}
	h.Hdr.Unmarshal(b[0:4])
	h.Opcode = b[4]
	h.Flags = b[5]
	h.CtrlID = binary.LittleEndian.Uint16(b[6:8])
	h.Cdw1 = binary.LittleEndian.Uint32(b[8:12])
	h.Cdw2 = binary.LittleEndian.Uint32(b[12:16])
	h.Cdw3 = binary.LittleEndian.Uint32(b[16:20])
	h.Cdw4 = binary.LittleEndian.Uint32(b[20:24])
	h.Cdw5 = binary.LittleEndian.Uint32(b[24:28])
	h.Doff = binary.LittleEndian.Uint32(b[28:32])
	h.Dlen = binary.LittleEndian.Uint32(b[32:36])
	h.Cdw8 = binary.LittleEndian.Uint32(b[44:48])
	h.Cdw9 = binary.LittleEndian.Uint32(b[48:52])
	h.Cdw10 = binary.LittleEndian.Uint32(b[52:56])
	h.Cdw11 = binary.LittleEndian.Uint32(b[56:60])
	h.Cdw12 = binary.LittleEndian.Uint32(b[60:64])
	h.Cdw13 = binary.LittleEndian.Uint32(b[64:68])
	h.Cdw14 = binary.LittleEndian.Uint32(b[68:72])
	h.Cdw15 = binary.LittleEndian.Uint32(b[72:76])
	return nil
}

// AdminResponseHeader is the envelope for every Admin command reply.
//
// Layout (12 bytes):
//
//	0   : type + nmp (common MsgHdr)
//	4   : status
//	5-7 : reserved
//	8-11: cdw0 (command-specific result)
type AdminResponseHeader struct {
	Hdr    MsgHdr
	Status uint8
	Cdw0   uint32
}

// Marshal encodes h into b, which must be at least AdminRespHdrLen bytes.
// It exists mainly for tests that build synthetic device responses.
func (h *AdminResponseHeader) Marshal(b []byte) {
	_ = b[AdminRespHdrLen-1]
	h.Hdr.Marshal(b[0:4])
	b[4] = h.Status
	b[5], b[6], b[7] = 0, 0, 0
	binary.LittleEndian.PutUint32(b[8:12], h.Cdw0)
}

// Unmarshal decodes an AdminResponseHeader from b, which must contain
// at least AdminRespHdrLen bytes.
func (h *AdminResponseHeader) Unmarshal(b []byte) error {
	if len(b) < AdminRespHdrLen {
		return io.ErrUnexpectedEOF
	}
	h.Hdr.Unmarshal(b[0:4])
	h.Status = b[4]
	h.Cdw0 = binary.LittleEndian.Uint32(b[8:12])
	return nil
}
