package nvmemi

import (
	"context"

	"github.com/codeconstruct/nvme-mi/internal/wire"
)

const adminMaxDataLen = 4096

// AdminRequest is the fully generic Admin request envelope, exposed
// as the escape hatch for commands this package does not build a
// dedicated helper for.
type AdminRequest struct {
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

	// ReqData is sent as the request payload; RespSize bounds the
	// reply payload the caller will accept.
	ReqData  []byte
	RespSize int
}

// AdminResult carries the response dword and raw payload of a
// completed Admin exchange.
type AdminResult struct {
	Cdw0    uint32
	RawResp []byte
}

func adminValidateLengths(reqLen, respSize int) error {
	if reqLen > adminMaxDataLen {
		return newErr(KindInvalidArg, "admin request payload exceeds 4096 bytes")
	}
	if respSize > adminMaxDataLen {
		return newErr(KindInvalidArg, "admin response payload exceeds 4096 bytes")
	}
	if reqLen > 0 && respSize > 0 {
		return newErr(KindInvalidArg, "admin command cannot be bidirectional")
	}
	return nil
}

// AdminXfer issues a fully caller-specified Admin command, enforcing
// the directionality and size invariants common to every Admin
// command before delegating to Submit.
func AdminXfer(ctx context.Context, ep *Endpoint, r *AdminRequest) (*AdminResult, error) {
	if err := adminValidateLengths(len(r.ReqData), r.RespSize); err != nil {
		return nil, err
	}

	flags := uint8(0)
	if r.Dlen != 0 || r.RespSize != 0 || len(r.ReqData) != 0 {
		flags |= wire.AdminFlagDlenValid
	}
	if r.Doff != 0 {
		flags |= wire.AdminFlagDoffValid
	}

	hdr := wire.AdminRequestHeader{
		Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)},
		Opcode: r.Opcode,
		CtrlID: r.CtrlID,
		Cdw1:   r.Cdw1,
		Cdw2:   r.Cdw2,
		Cdw3:   r.Cdw3,
		Cdw4:   r.Cdw4,
		Cdw5:   r.Cdw5,
		Doff:   r.Doff,
		Dlen:   r.Dlen,
		Cdw8:   r.Cdw8,
		Cdw9:   r.Cdw9,
		Cdw10:  r.Cdw10,
		Cdw11:  r.Cdw11,
		Cdw12:  r.Cdw12,
		Cdw13:  r.Cdw13,
		Cdw14:  r.Cdw14,
		Cdw15:  r.Cdw15,
		Flags:  flags,
	}

	reqHdrBuf := make([]byte, wire.AdminReqHdrLen)
	hdr.Marshal(reqHdrBuf)

	respHdrBuf := make([]byte, wire.AdminRespHdrLen)
	respData := make([]byte, r.RespSize)

	req := &Request{Header: reqHdrBuf, Payload: r.ReqData}
	resp := &Response{Header: respHdrBuf, Payload: respData}

	if err := Submit(ctx, ep, req, resp); err != nil {
		return nil, err
	}

	var respHdr wire.AdminResponseHeader
	if err := respHdr.Unmarshal(resp.Header); err != nil {
		return nil, wrapErr(KindProtocol, "short admin response header", err)
	}
	if respHdr.Status != 0 {
		return nil, deviceStatusErr(respHdr.Status)
	}

	return &AdminResult{Cdw0: respHdr.Cdw0, RawResp: resp.Payload}, nil
}

// IdentifyParams selects the NVMe Identify command variant and
// destination buffer; the NVMe-MI Admin envelope carries a subset of
// the Identify command's dwords (spec.md §4.4).
type IdentifyParams struct {
	Nsid         uint32
	CNS          uint8
	CNTID        uint16
	CSI          uint8
	CNSSpecificID uint16
	UUIDIndex    uint8

	Data   []byte
	Offset uint32

	// Result receives the response dword (cdw0), for the Identify
	// variants that return one alongside the data transfer.
	Result uint32
}

// Identify issues a partial NVMe Identify command through the Admin
// envelope. The read is all-or-nothing: a short reply is a protocol
// error rather than a partial result.
func Identify(ctx context.Context, ep *Endpoint, ctrlID uint16, p *IdentifyParams) error {
	size := len(p.Data)
	if size == 0 || uint64(size) > 0xFFFFFFFF {
		return newErr(KindInvalidArg, "identify data size out of range")
	}
	if uint64(p.Offset) > 0xFFFFFFFF {
		return newErr(KindInvalidArg, "identify offset out of range")
	}
	if p.Offset%4 != 0 {
		return newErr(KindInvalidArg, "identify offset not 4-byte aligned")
	}

	cdw10 := uint32(p.CNS) | uint32(p.CNTID)<<16
	cdw11 := uint32(p.CNSSpecificID) | uint32(p.CSI)<<24
	cdw14 := uint32(p.UUIDIndex)

	flags := wire.AdminFlagDlenValid
	if p.Offset != 0 {
		flags |= wire.AdminFlagDoffValid
	}

	hdr := wire.AdminRequestHeader{
		Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)},
		Opcode: adminOpcodeIdentify,
		CtrlID: ctrlID,
		Cdw1:   p.Nsid,
		Doff:   p.Offset,
		Dlen:   uint32(size),
		Cdw10:  cdw10,
		Cdw11:  cdw11,
		Cdw14:  cdw14,
		Flags:  flags,
	}

	reqHdrBuf := make([]byte, wire.AdminReqHdrLen)
	hdr.Marshal(reqHdrBuf)

	respHdrBuf := make([]byte, wire.AdminRespHdrLen)
	req := &Request{Header: reqHdrBuf}
	resp := &Response{Header: respHdrBuf, Payload: p.Data}

	if err := Submit(ctx, ep, req, resp); err != nil {
		return err
	}

	var respHdr wire.AdminResponseHeader
	if err := respHdr.Unmarshal(resp.Header); err != nil {
		return wrapErr(KindProtocol, "short identify response header", err)
	}
	if respHdr.Status != 0 {
		return deviceStatusErr(respHdr.Status)
	}
	if len(resp.Payload) < size {
		return newErr(KindProtocol, "identify response shorter than requested size")
	}
	p.Result = respHdr.Cdw0
	return nil
}

// adminOpcodeIdentify is the NVMe Admin Identify command opcode,
// unchanged by tunnelling through NVMe-MI.
const adminOpcodeIdentify uint8 = 0x06

// adminOpcodeGetLogPage is the NVMe Admin Get Log Page command opcode.
const adminOpcodeGetLogPage uint8 = 0x02

// adminOpcodeSecuritySend is the NVMe Admin Security Send opcode.
const adminOpcodeSecuritySend uint8 = 0x81

// adminOpcodeSecurityReceive is the NVMe Admin Security Receive opcode.
const adminOpcodeSecurityReceive uint8 = 0x82

const getLogPageChunkMax = 4096

// GetLogPageParams selects the log page and destination buffer for a
// segmented Get Log Page transfer.
type GetLogPageParams struct {
	Nsid uint32
	LID  uint8
	LSP  uint8
	LSI  uint16
	LPO  uint64
	CSI  uint8
	OT   bool
	RAE  bool

	UUIDIndex uint8

	// Log receives the transferred bytes; its length on entry is the
	// total amount requested and is updated on return to reflect what
	// was actually obtained.
	Log *[]byte
}

// GetLogPage performs the segmented Get Log Page transfer, windowing
// the request into chunks no larger than 4096 bytes and stopping
// early on a short reply.
func GetLogPage(ctx context.Context, ep *Endpoint, ctrlID uint16, p *GetLogPageParams) error {
	total := len(*p.Log)
	buf := *p.Log
	got := 0

	for offset := 0; offset < total; offset += getLogPageChunkMax {
		chunk := total - offset
		if chunk > getLogPageChunkMax {
			chunk = getLogPageChunkMax
		}
		final := offset+chunk >= total

		forceRAE := p.RAE || !final
		n, err := getLogPageChunk(ctx, ep, ctrlID, p, uint64(offset), buf[offset:offset+chunk], forceRAE)
		got = offset + n
		if err != nil {
			return err
		}
		if n < chunk {
			break
		}
	}

	*p.Log = buf[:got]
	return nil
}

func getLogPageChunk(ctx context.Context, ep *Endpoint, ctrlID uint16, p *GetLogPageParams, offset uint64, dst []byte, rae bool) (int, error) {
	if len(dst) < 4 {
		return 0, newErr(KindInvalidArg, "get log page chunk shorter than one dword")
	}
	ndw := uint32(len(dst)/4) - 1

	cdw10 := uint32(p.LID) | uint32(p.LSP)<<8 | (ndw&0xffff)<<16
	if rae {
		cdw10 |= 1 << 15
	}
	cdw11 := (ndw >> 16) | uint32(p.LSI)<<16
	cdw12 := uint32(p.LPO)
	cdw13 := uint32(p.LPO >> 32)
	cdw14 := uint32(p.UUIDIndex)
	if p.OT {
		cdw14 |= 1 << 23
	}
	cdw14 |= uint32(p.CSI) << 24

	flags := wire.AdminFlagDlenValid
	if offset > 0 {
		flags |= wire.AdminFlagDoffValid
	}

	hdr := wire.AdminRequestHeader{
		Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)},
		Opcode: adminOpcodeGetLogPage,
		CtrlID: ctrlID,
		Cdw1:   p.Nsid,
		Doff:   uint32(offset),
		Dlen:   uint32(len(dst)),
		Cdw10:  cdw10,
		Cdw11:  cdw11,
		Cdw12:  cdw12,
		Cdw13:  cdw13,
		Cdw14:  cdw14,
		Flags:  flags,
	}

	reqHdrBuf := make([]byte, wire.AdminReqHdrLen)
	hdr.Marshal(reqHdrBuf)

	respHdrBuf := make([]byte, wire.AdminRespHdrLen)
	req := &Request{Header: reqHdrBuf}
	resp := &Response{Header: respHdrBuf, Payload: dst}

	if err := Submit(ctx, ep, req, resp); err != nil {
		return 0, err
	}

	var respHdr wire.AdminResponseHeader
	if err := respHdr.Unmarshal(resp.Header); err != nil {
		return 0, wrapErr(KindProtocol, "short get log page response header", err)
	}
	if respHdr.Status != 0 {
		return 0, deviceStatusErr(respHdr.Status)
	}
	return len(resp.Payload), nil
}

// SecuritySendParams selects the security protocol addressing for a
// Security Send command.
type SecuritySendParams struct {
	SECP  uint8
	SPSP0 uint8
	SPSP1 uint8
	NSSF  uint8
	Data  []byte
}

// SecuritySend issues a Security Send Admin command, carrying Data
// out to the device.
func SecuritySend(ctx context.Context, ep *Endpoint, ctrlID uint16, p *SecuritySendParams) error {
	if len(p.Data) > adminMaxDataLen {
		return newErr(KindInvalidArg, "security send payload exceeds 4096 bytes")
	}
	cdw10, cdw11 := securityCdw(p.SECP, p.SPSP0, p.SPSP1, p.NSSF, len(p.Data))

	hdr := wire.AdminRequestHeader{
		Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)},
		Opcode: adminOpcodeSecuritySend,
		CtrlID: ctrlID,
		Dlen:   uint32(len(p.Data)),
		Cdw10:  cdw10,
		Cdw11:  cdw11,
		Flags:  wire.AdminFlagDlenValid,
	}
	reqHdrBuf := make([]byte, wire.AdminReqHdrLen)
	hdr.Marshal(reqHdrBuf)

	respHdrBuf := make([]byte, wire.AdminRespHdrLen)
	req := &Request{Header: reqHdrBuf, Payload: p.Data}
	resp := &Response{Header: respHdrBuf}

	if err := Submit(ctx, ep, req, resp); err != nil {
		return err
	}
	var respHdr wire.AdminResponseHeader
	if err := respHdr.Unmarshal(resp.Header); err != nil {
		return wrapErr(KindProtocol, "short security send response header", err)
	}
	if respHdr.Status != 0 {
		return deviceStatusErr(respHdr.Status)
	}
	return nil
}

// SecurityReceiveParams selects the security protocol addressing and
// destination buffer for a Security Receive command.
type SecurityReceiveParams struct {
	SECP  uint8
	SPSP0 uint8
	SPSP1 uint8
	NSSF  uint8
	Data  []byte
}

// SecurityReceive issues a Security Receive Admin command, carrying
// the device's reply into Data.
func SecurityReceive(ctx context.Context, ep *Endpoint, ctrlID uint16, p *SecurityReceiveParams) error {
	if len(p.Data) > adminMaxDataLen {
		return newErr(KindInvalidArg, "security receive payload exceeds 4096 bytes")
	}
	cdw10, cdw11 := securityCdw(p.SECP, p.SPSP0, p.SPSP1, p.NSSF, len(p.Data))

	hdr := wire.AdminRequestHeader{
		Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeAdmin)},
		Opcode: adminOpcodeSecurityReceive,
		CtrlID: ctrlID,
		Dlen:   uint32(len(p.Data)),
		Cdw10:  cdw10,
		Cdw11:  cdw11,
		Flags:  wire.AdminFlagDlenValid,
	}
	reqHdrBuf := make([]byte, wire.AdminReqHdrLen)
	hdr.Marshal(reqHdrBuf)

	respHdrBuf := make([]byte, wire.AdminRespHdrLen)
	req := &Request{Header: reqHdrBuf}
	resp := &Response{Header: respHdrBuf, Payload: p.Data}

	if err := Submit(ctx, ep, req, resp); err != nil {
		return err
	}
	var respHdr wire.AdminResponseHeader
	if err := respHdr.Unmarshal(resp.Header); err != nil {
		return wrapErr(KindProtocol, "short security receive response header", err)
	}
	if respHdr.Status != 0 {
		return deviceStatusErr(respHdr.Status)
	}
	return nil
}

func securityCdw(secp, spsp0, spsp1, nssf uint8, dataLen int) (uint32, uint32) {
	cdw10 := uint32(secp)<<24 | uint32(spsp0)<<16 | uint32(spsp1)<<8 | uint32(nssf)
	cdw11 := uint32(dataLen)
	return cdw10, cdw11
}
