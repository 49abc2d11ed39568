package nvmemi

import "github.com/codeconstruct/nvme-mi/internal/wire"

// Request is the ephemeral frame a caller builds and hands to Submit.
// Header and Payload are owned by the caller for the duration of the
// call; Submit and the transport only read them (except for stamping
// MIC, which this package computes and stores separately rather than
// appending it to Header, so a caller-owned buffer is never resized
// out from under it).
type Request struct {
	Header  []byte
	Payload []byte
	MIC     uint32
}

// Response is the ephemeral frame a caller pre-sizes to the maximum
// it will accept. After Submit returns successfully, Header and
// Payload may have been reslice to shorter lengths reflecting
// truncation performed by the transport (§4.3).
type Response struct {
	Header  []byte
	Payload []byte
	MIC     uint32
}

// validateRequest checks the length/alignment/type invariants a
// request frame must satisfy before any I/O is attempted.
func validateRequest(req *Request) error {
	if len(req.Header) < wire.MinHeaderLen {
		return newErr(KindInvalidArg, "header shorter than minimum")
	}
	if len(req.Header)%4 != 0 {
		return newErr(KindInvalidArg, "header length not a multiple of 4")
	}
	if len(req.Payload)%4 != 0 {
		return newErr(KindInvalidArg, "payload length not a multiple of 4")
	}
	var hdr wire.MsgHdr
	hdr.Unmarshal(req.Header)
	if hdr.Type != wire.MsgTypeNVMe {
		return newErr(KindInvalidArg, "header type is not the NVMe-MI message type")
	}
	if wire.ROR(hdr.NMP) != wire.RORRequest {
		return newErr(KindInvalidArg, "request frame has response ROR bit set")
	}
	if wire.CommandSlot(hdr.NMP) != 0 {
		return newErr(KindInvalidArg, "request frame uses a non-zero command slot")
	}
	return nil
}

// validateResponseBuffers checks the length/alignment invariants a
// response frame's caller-supplied buffers must satisfy before any
// I/O is attempted, mirroring validateRequest's checks on the request
// side (spec.md §4.2's six length/alignment invariants apply to both
// directions).
func validateResponseBuffers(resp *Response) error {
	if len(resp.Header)%4 != 0 {
		return newErr(KindInvalidArg, "response header buffer length not a multiple of 4")
	}
	if len(resp.Payload)%4 != 0 {
		return newErr(KindInvalidArg, "response payload buffer length not a multiple of 4")
	}
	return nil
}

// validateResponseHeader checks the header invariants a response
// frame must satisfy once it comes back from the transport, matching
// the command slot against the request that produced it.
func validateResponseHeader(reqHeader, respHeader []byte) error {
	if len(respHeader) < wire.MinHeaderLen {
		return newErr(KindProtocol, "response header shorter than minimum")
	}
	var reqHdr, respHdr wire.MsgHdr
	reqHdr.Unmarshal(reqHeader)
	respHdr.Unmarshal(respHeader)
	if respHdr.Type != wire.MsgTypeNVMe {
		return newErr(KindProtocol, "response header type is not the NVMe-MI message type")
	}
	if wire.ROR(respHdr.NMP) != wire.RORResponse {
		return newErr(KindProtocol, "response frame does not have the ROR bit set")
	}
	if wire.CommandSlot(respHdr.NMP) != wire.CommandSlot(reqHdr.NMP) {
		return newErr(KindSlotMismatch, "response command slot does not match request")
	}
	return nil
}
