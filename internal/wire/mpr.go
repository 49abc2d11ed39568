package wire

import "encoding/binary"

// MPRRespLen is the size of a More Processing Required response
// message, excluding its trailing 4-byte MIC (spec.md §4.3).
const MPRRespLen = 8

// MPRStatus is the status byte a device uses to signal More
// Processing Required.
const MPRStatus uint8 = 0x3

// MPRResp is the fixed-size message a device sends to ask the
// initiator to wait mprt*100ms and retry the receive.
//
// Layout (8 bytes):
//
//	0   : type + nmp (common MsgHdr)
//	4   : status
//	5   : reserved
//	6-7 : mprt (little-endian count of 100ms units)
type MPRResp struct {
	Hdr    MsgHdr
	Status uint8
	MPRT   uint16
}

// UnmarshalMPRResp decodes an MPRResp from b, which must be at least
// MPRRespLen bytes. It does not validate Status; callers check that.
func UnmarshalMPRResp(b []byte) MPRResp {
	var m MPRResp
	m.Hdr.Unmarshal(b[0:4])
	m.Status = b[4]
	m.MPRT = binary.LittleEndian.Uint16(b[6:8])
	return m
}
