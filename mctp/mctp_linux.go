package mctp

// AF_MCTP and its address family plumbing are not yet exposed by
// golang.org/x/sys/unix as of this writing (kernel v5.15+ only, and
// then only via linux/mctp.h). We define the raw pieces ourselves,
// mirroring mi-mctp.c's own "#if !HAVE_LINUX_MCTP_H" fallback block.
const (
	afMCTP    = 45
	mctpNetAny = 0

	mctpAddrNull = 0x00
	mctpAddrAny  = 0xff

	mctpTagMask  = 0x07
	mctpTagOwner = 0x08

	// mctpTagPrealloc marks a tag returned by SIOCMCTPALLOCTAG, so it
	// is known to require an explicit drop (mi-mctp.c's
	// MCTP_TAG_PREALLOC guard in nvme_mi_mctp_tag_drop).
	mctpTagPrealloc = 0x10

	mctpTypeNVMe = 0x04
	mctpTypeMIC  = 0x80
)

// ioctl request numbers for explicit MCTP tag control, defined by
// linux/mctp.h once present. _IOWR('M', 1/2, struct mctp_ioc_tag_ctl).
const (
	sizeofMCTPIocTagCtl = 8
	siocMCTPAllocTag    = 0xc0084d01
	siocMCTPDropTag     = 0xc0084d02
)

// mctpIocTagCtl mirrors struct mctp_ioc_tag_ctl: peer address, tag,
// and a flags word, used for both ALLOCTAG and DROPTAG ioctls.
//
//	0: peer_addr (u8)
//	1: pad[3]
//	4: tag (u8)
//	5: flags (u8)
//	6: pad[2]
type mctpIocTagCtl struct {
	peerAddr uint8
	_        [3]uint8
	tag      uint8
	flags    uint8
	_        [2]uint8
}

func (c *mctpIocTagCtl) bytes() []byte {
	b := make([]byte, sizeofMCTPIocTagCtl)
	b[0] = c.peerAddr
	b[4] = c.tag
	b[5] = c.flags
	return b
}

func (c *mctpIocTagCtl) fromBytes(b []byte) {
	c.peerAddr = b[0]
	c.tag = b[4]
	c.flags = b[5]
}

// sockaddrMCTP mirrors struct sockaddr_mctp, which golang.org/x/sys/unix
// does not define. We build and parse its bytes ourselves rather than
// implementing unix.Sockaddr (whose sockaddr() method is unexported
// and cannot be satisfied outside package unix) — see socketops_linux.go's
// socketOps, which speaks in raw bytes for exactly this reason.
//
//	0-1  : family (u16)
//	2-3  : pad0 (u16)
//	4-7  : network (u32)
//	8    : addr.s_addr (u8, the peer EID)
//	9    : type (u8)
//	10   : tag (u8)
//	11   : pad1 (u8)
const sizeofSockaddrMCTP = 12

type sockaddrMCTP struct {
	network uint32
	eid     uint8
	msgType uint8
	tag     uint8
}

func (a sockaddrMCTP) bytes() []byte {
	b := make([]byte, sizeofSockaddrMCTP)
	le16put(b[0:2], afMCTP)
	le32put(b[4:8], a.network)
	b[8] = a.eid
	b[9] = a.msgType
	b[10] = a.tag
	return b
}

func le16put(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func le32put(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
