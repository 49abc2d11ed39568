package nvmemi

import (
	"context"

	"github.com/codeconstruct/nvme-mi/internal/wire"
)

// MI Data Read structure types (dtype), selecting which fixed or
// variable-length structure a Read MI Data command returns.
const (
	MIDataTypeSubsystemInfo  uint8 = 0x00
	MIDataTypePortInfo       uint8 = 0x01
	MIDataTypeControllerList uint8 = 0x02
	MIDataTypeControllerInfo uint8 = 0x03
)

// Fixed sizes of the structures Read MI Data can return. A response
// that doesn't match the size for a fixed-size dtype is a protocol
// error (spec.md §4.5); ControllerList has no fixed size, since the
// caller parses the leading count field itself.
const (
	subsystemInfoLen = 32
	portInfoLen      = 32
	controllerInfoLen = 32
)

// readMIData issues a Read MI Data command with the given cdw0
// selector, delivering the reply into dst. It returns the number of
// bytes the device actually returned, mirroring the original's
// resp->data_len output parameter.
func readMIData(ctx context.Context, ep *Endpoint, cdw0 uint32, dst []byte) (int, error) {
	hdr := wire.MIRequestHeader{
		Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeMI)},
		Opcode: wire.OpcodeMIDataRead,
		Cdw0:   cdw0,
	}
	reqHdrBuf := make([]byte, wire.MIReqHdrLen)
	hdr.Marshal(reqHdrBuf)

	respHdrBuf := make([]byte, wire.MIRespHdrLen)
	req := &Request{Header: reqHdrBuf}
	resp := &Response{Header: respHdrBuf, Payload: dst}

	if err := Submit(ctx, ep, req, resp); err != nil {
		return 0, err
	}

	var respHdr wire.MIResponseHeader
	if err := respHdr.Unmarshal(resp.Header); err != nil {
		return 0, wrapErr(KindProtocol, "short MI data read response header", err)
	}
	if respHdr.Status != 0 {
		return 0, deviceStatusErr(respHdr.Status)
	}
	return len(resp.Payload), nil
}

// ReadMIDataSubsystemInfo reads the fixed-size NVM subsystem
// information structure.
func ReadMIDataSubsystemInfo(ctx context.Context, ep *Endpoint, dst []byte) error {
	if len(dst) != subsystemInfoLen {
		return newErr(KindInvalidArg, "subsystem info buffer must be exactly 32 bytes")
	}
	cdw0 := uint32(MIDataTypeSubsystemInfo) << 24
	n, err := readMIData(ctx, ep, cdw0, dst)
	if err != nil {
		return err
	}
	if n != subsystemInfoLen {
		return newErr(KindProtocol, "subsystem info reply size mismatch")
	}
	return nil
}

// ReadMIDataPortInfo reads the fixed-size port information structure
// for portID.
func ReadMIDataPortInfo(ctx context.Context, ep *Endpoint, portID uint8, dst []byte) error {
	if len(dst) != portInfoLen {
		return newErr(KindInvalidArg, "port info buffer must be exactly 32 bytes")
	}
	cdw0 := uint32(MIDataTypePortInfo)<<24 | uint32(portID)<<16
	n, err := readMIData(ctx, ep, cdw0, dst)
	if err != nil {
		return err
	}
	if n != portInfoLen {
		return newErr(KindProtocol, "port info reply size mismatch")
	}
	return nil
}

// ReadMIDataControllerInfo reads the fixed-size controller information
// structure for ctrlID.
//
// ctrlID (host order) is placed directly in the low 16 bits of cdw0,
// then the whole dword is written little-endian on the wire by
// MIRequestHeader.Marshal — spec.md §9 flags an implementation that
// folds ctrl_id through a little-endian conversion before shifting it
// into position as a double-swap bug on big-endian hosts; we avoid
// that by never converting ctrlID on its own.
func ReadMIDataControllerInfo(ctx context.Context, ep *Endpoint, ctrlID uint16, dst []byte) error {
	if len(dst) != controllerInfoLen {
		return newErr(KindInvalidArg, "controller info buffer must be exactly 32 bytes")
	}
	cdw0 := uint32(MIDataTypeControllerInfo)<<24 | uint32(ctrlID)
	n, err := readMIData(ctx, ep, cdw0, dst)
	if err != nil {
		return err
	}
	if n != controllerInfoLen {
		return newErr(KindProtocol, "controller info reply size mismatch")
	}
	return nil
}

// controllerListMax is NVME_ID_CTRL_LIST_MAX: the maximum number of
// entries a controller list structure's count field may report before
// the topology scanner treats it as a protocol violation.
const controllerListMax = 2047

// controllerListBufLen is the wire size of a controller list
// structure: a 2-byte count followed by up to controllerListMax
// 2-byte controller identifiers.
const controllerListBufLen = 2 + controllerListMax*2

// ReadMIDataControllerList reads the controller list structure
// starting at startCtrlID. Unlike the fixed-size dtypes, any reply
// length is accepted; the caller (topology scan) parses the leading
// count field itself.
func ReadMIDataControllerList(ctx context.Context, ep *Endpoint, startCtrlID uint8, dst []byte) (int, error) {
	cdw0 := uint32(MIDataTypeControllerList)<<24 | uint32(startCtrlID)<<16
	return readMIData(ctx, ep, cdw0, dst)
}

// SubsystemHealthStatusPoll issues a Subsystem Health Status Poll
// command. When clear is true the device clears the composite health
// indicator after reporting it. dst must be exactly 32 bytes, the
// fixed size of the health status structure.
func SubsystemHealthStatusPoll(ctx context.Context, ep *Endpoint, clear bool, dst []byte) error {
	const healthStatusLen = 32
	if len(dst) != healthStatusLen {
		return newErr(KindInvalidArg, "health status buffer must be exactly 32 bytes")
	}

	var cdw1 uint32
	if clear {
		cdw1 = 1 << 31
	}

	hdr := wire.MIRequestHeader{
		Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeMI)},
		Opcode: wire.OpcodeSubsystemHealthStatusPoll,
		Cdw1:   cdw1,
	}
	reqHdrBuf := make([]byte, wire.MIReqHdrLen)
	hdr.Marshal(reqHdrBuf)

	respHdrBuf := make([]byte, wire.MIRespHdrLen)
	req := &Request{Header: reqHdrBuf}
	resp := &Response{Header: respHdrBuf, Payload: dst}

	if err := Submit(ctx, ep, req, resp); err != nil {
		return err
	}

	var respHdr wire.MIResponseHeader
	if err := respHdr.Unmarshal(resp.Header); err != nil {
		return wrapErr(KindProtocol, "short health status poll response header", err)
	}
	if respHdr.Status != 0 {
		return deviceStatusErr(respHdr.Status)
	}
	if len(resp.Payload) != healthStatusLen {
		return newErr(KindProtocol, "health status reply size mismatch")
	}
	return nil
}

// ConfigurationGet reads back a two-dword-addressed configuration
// item, returning the device's 24-bit nmresp value.
func ConfigurationGet(ctx context.Context, ep *Endpoint, dw0, dw1 uint32) (uint32, error) {
	hdr := wire.MIRequestHeader{
		Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeMI)},
		Opcode: wire.OpcodeConfigurationGet,
		Cdw0:   dw0,
		Cdw1:   dw1,
	}
	reqHdrBuf := make([]byte, wire.MIReqHdrLen)
	hdr.Marshal(reqHdrBuf)

	respHdrBuf := make([]byte, wire.MIRespHdrLen)
	req := &Request{Header: reqHdrBuf}
	resp := &Response{Header: respHdrBuf}

	if err := Submit(ctx, ep, req, resp); err != nil {
		return 0, err
	}

	var respHdr wire.MIResponseHeader
	if err := respHdr.Unmarshal(resp.Header); err != nil {
		return 0, wrapErr(KindProtocol, "short configuration get response header", err)
	}
	if respHdr.Status != 0 {
		return 0, deviceStatusErr(respHdr.Status)
	}
	return wire.NMRespValue(respHdr.NMResp), nil
}

// ConfigurationSet sets a two-dword-addressed configuration item; the
// device carries no response data beyond the status byte.
func ConfigurationSet(ctx context.Context, ep *Endpoint, dw0, dw1 uint32) error {
	hdr := wire.MIRequestHeader{
		Hdr:    wire.MsgHdr{Type: wire.MsgTypeNVMe, NMP: wire.NMP(wire.RORRequest, wire.MessageTypeMI)},
		Opcode: wire.OpcodeConfigurationSet,
		Cdw0:   dw0,
		Cdw1:   dw1,
	}
	reqHdrBuf := make([]byte, wire.MIReqHdrLen)
	hdr.Marshal(reqHdrBuf)

	respHdrBuf := make([]byte, wire.MIRespHdrLen)
	req := &Request{Header: reqHdrBuf}
	resp := &Response{Header: respHdrBuf}

	if err := Submit(ctx, ep, req, resp); err != nil {
		return err
	}

	var respHdr wire.MIResponseHeader
	if err := respHdr.Unmarshal(resp.Header); err != nil {
		return wrapErr(KindProtocol, "short configuration set response header", err)
	}
	if respHdr.Status != 0 {
		return deviceStatusErr(respHdr.Status)
	}
	return nil
}
