package wire

// Message type byte values, carried as the MCTP message-type field and
// as the first byte of every NVMe-MI message on the wire.
const (
	// MsgTypeBaseNVMe identifies the message as NVMe-MI, before the MIC
	// bit is folded in.
	MsgTypeBaseNVMe uint8 = 0x04
	// MsgTypeMIC indicates a trailing Message Integrity Check is present.
	MsgTypeMIC uint8 = 0x80
	// MsgTypeNVMe is the type byte actually carried by every message in
	// this package: NVMe-MI over MCTP always carries a MIC (spec.md
	// §4.3), so this is the value stamped into every request header,
	// restored onto every response header, and covered by the MIC
	// itself, matching original_source/src/nvme/mi-mctp.c's in-memory
	// representation.
	MsgTypeNVMe uint8 = MsgTypeBaseNVMe | MsgTypeMIC
)

// Message class values, carried in bits 6:3 of the nmp header byte.
const (
	MessageTypeMI    uint8 = 1
	MessageTypeAdmin uint8 = 3
)

// ROR (Request-or-Response) values, carried in bit 7 of the nmp byte.
const (
	RORRequest  uint8 = 0
	RORResponse uint8 = 1
)

// commandSlot is always 0 in this implementation; spec.md reserves bit
// 0 of nmp for a second command slot that no caller may select yet.
const commandSlot uint8 = 0

// MinHeaderLen is the size of the minimal common message header
// (type + nmp + two reserved bytes), the floor enforced on every
// request and response header by the submit pipeline.
const MinHeaderLen = 4

// MsgHdr is the 4-byte header common to every NVMe-MI message.
type MsgHdr struct {
	Type uint8
	NMP  uint8
}

// Marshal writes the 4-byte encoding of h into b, which must be at
// least MinHeaderLen bytes.
func (h MsgHdr) Marshal(b []byte) {
	_ = b[3] // bounds check hint
	b[0] = h.Type
	b[1] = h.NMP
	b[2] = 0
	b[3] = 0
}

// Unmarshal reads a MsgHdr from the first MinHeaderLen bytes of b.
func (h *MsgHdr) Unmarshal(b []byte) {
	_ = b[3]
	h.Type = b[0]
	h.NMP = b[1]
}

// NMP builds the nmp byte for a given ROR bit and message class. The
// command slot is always 0.
func NMP(ror uint8, class uint8) uint8 {
	return (ror << 7) | (class << 3) | commandSlot
}

// ROR extracts the Request-or-Response bit from an nmp byte.
func ROR(nmp uint8) uint8 {
	return (nmp >> 7) & 0x1
}

// MessageClass extracts the message class bits from an nmp byte.
func MessageClass(nmp uint8) uint8 {
	return (nmp >> 3) & 0xf
}

// CommandSlot extracts the command slot bit from an nmp byte.
func CommandSlot(nmp uint8) uint8 {
	return nmp & 0x1
}
