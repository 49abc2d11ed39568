package wire

import (
	"encoding/binary"
	"io"
)

// MIReqHdrLen is the fixed length of an MIRequestHeader on the wire.
const MIReqHdrLen = 16

// MIRespHdrLen is the fixed length of an MIResponseHeader on the wire.
const MIRespHdrLen = 12

// MIRequestHeader is the envelope for every Management Interface
// command (spec.md §4.5): Read MI Data, Subsystem Health Status Poll,
// and Configuration Get/Set.
//
// Layout (16 bytes):
//
//	0   : type + nmp (common MsgHdr)
//	4   : opcode
//	5-7 : reserved
//	8-11: cdw0
//	12-15: cdw1
type MIRequestHeader struct {
	Hdr    MsgHdr
	Opcode uint8
	Cdw0   uint32
	Cdw1   uint32
}

// MI command opcodes.
const (
	OpcodeMIDataRead               uint8 = 0x00
	OpcodeSubsystemHealthStatusPoll uint8 = 0x01
	OpcodeConfigurationSet         uint8 = 0x03
	OpcodeConfigurationGet         uint8 = 0x04
)

// Marshal encodes h into b, which must be at least MIReqHdrLen bytes.
func (h *MIRequestHeader) Marshal(b []byte) {
	_ = b[MIReqHdrLen-1]
	h.Hdr.Marshal(b[0:4])
	b[4] = h.Opcode
	b[5], b[6], b[7] = 0, 0, 0
	binary.LittleEndian.PutUint32(b[8:12], h.Cdw0)
	binary.LittleEndian.PutUint32(b[12:16], h.Cdw1)
}

// Unmarshal decodes an MIRequestHeader from b, which must contain at
// least MIReqHdrLen bytes. It exists mainly for tests that inspect the
// requests the MI command layer builds.
func (h *MIRequestHeader) Unmarshal(b []byte) error {
	if len(b) < MIReqHdrLen {
		return io.ErrUnexpectedEOF
	}
	h.Hdr.Unmarshal(b[0:4])
	h.Opcode = b[4]
	h.Cdw0 = binary.LittleEndian.Uint32(b[8:12])
	h.Cdw1 = binary.LittleEndian.Uint32(b[12:16])
	return nil
}

// MIResponseHeader is the envelope for every MI command reply.
//
// Layout (12 bytes):
//
//	0   : type + nmp (common MsgHdr)
//	4   : status
//	5-7 : reserved
//	8   : nmresp[0]
//	9   : nmresp[1]
//	10  : nmresp[2]
//	11  : reserved
type MIResponseHeader struct {
	Hdr    MsgHdr
	Status uint8
	NMResp [3]byte
}

// Marshal encodes h into b, used by tests building synthetic responses.
func (h *MIResponseHeader) Marshal(b []byte) {
	_ = b[MIRespHdrLen-1]
	h.Hdr.Marshal(b[0:4])
	b[4] = h.Status
	b[5], b[6], b[7] = 0, 0, 0
	b[8], b[9], b[10] = h.NMResp[0], h.NMResp[1], h.NMResp[2]
	b[11] = 0
}

// Unmarshal decodes an MIResponseHeader from b, which must contain at
// least MIRespHdrLen bytes.
func (h *MIResponseHeader) Unmarshal(b []byte) error {
	if len(b) < MIRespHdrLen {
		return io.ErrUnexpectedEOF
	}
	h.Hdr.Unmarshal(b[0:4])
	h.Status = b[4]
	h.NMResp[0], h.NMResp[1], h.NMResp[2] = b[8], b[9], b[10]
	return nil
}

// NMRespValue folds the 3-byte nmresp field into a 24-bit value.
func NMRespValue(nmresp [3]byte) uint32 {
	return uint32(nmresp[0]) | uint32(nmresp[1])<<8 | uint32(nmresp[2])<<16
}
