// Package mctp implements the concrete NVMe-MI transport over MCTP
// (Management Component Transport Protocol): a datagram socket in the
// AF_MCTP family, scatter/gather send and receive, tag allocation and
// release, poll-based timeout, and the More Processing Required retry
// protocol described in spec.md §4.3.
//
// This package only depends on the small nvmemi.Transport capability
// interface; nvmemi itself has no notion of MCTP.
package mctp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/codeconstruct/nvme-mi"
	"github.com/codeconstruct/nvme-mi/internal/wire"
)

// defaultTimeout is the MCTP-specific default per-request timeout
// (spec.md §6): assuming an I2C transport at 100kHz and the smallest
// MTU, a worst-case clock-stretched exchange can take up to 1.6s;
// allowing for a retry or two handled by lower layers, 5s is
// generous headroom.
const defaultTimeout = 5000 * time.Millisecond

// Transport is one endpoint's MCTP transport state: the destination
// address and the datagram socket it owns exclusively. It implements
// nvmemi.Transport, nvmemi.TransportCloser, nvmemi.TransportDescriber
// and nvmemi.TransportTimeoutChecker.
type Transport struct {
	network uint32
	eid     uint8
	fd      int
	ops     socketOps

	loggedTagFallback bool
}

var (
	_ nvmemi.Transport               = (*Transport)(nil)
	_ nvmemi.TransportCloser         = (*Transport)(nil)
	_ nvmemi.TransportDescriber      = (*Transport)(nil)
	_ nvmemi.TransportTimeoutChecker = (*Transport)(nil)
)

// Option configures a Transport at construction time, in the style of
// rocketbitz-libfabric-go/fi's DiscoverOption pattern.
type Option func(*transportConfig)

type transportConfig struct {
	timeout time.Duration
	mprtMax time.Duration
	ops     *socketOps
}

// WithTimeout overrides the endpoint's default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *transportConfig) { c.timeout = d }
}

// WithMprtMax sets a clamp on device-advertised MPR wait times.
func WithMprtMax(d time.Duration) Option {
	return func(c *transportConfig) { c.mprtMax = d }
}

// WithSocketOps substitutes the syscall vtable, for tests driving MPR,
// CRC, and timeout scenarios without a real MCTP-capable kernel.
func WithSocketOps(ops socketOps) Option {
	return func(c *transportConfig) { c.ops = &ops }
}

// Open creates a new endpoint on root, addressed by (netID, eid) on
// the local system's MCTP stack, and opens its datagram socket.
func Open(root *nvmemi.Root, netID uint32, eid uint8, opts ...Option) (*nvmemi.Endpoint, error) {
	cfg := transportConfig{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	ops := defaultSocketOps()
	if cfg.ops != nil {
		ops = *cfg.ops
	}

	fd, err := ops.socket()
	if err != nil {
		return nil, &nvmemi.Error{Kind: nvmemi.KindTransport, Msg: "opening MCTP socket", Err: err}
	}

	tr := &Transport{network: netID, eid: eid, fd: fd, ops: ops}

	ep := nvmemi.NewEndpoint(root, tr)
	ep.SetTimeout(cfg.timeout)
	if cfg.mprtMax > 0 {
		ep.SetMprtMax(cfg.mprtMax)
	}
	return ep, nil
}

// Network returns the MCTP network id this transport is bound to.
func (t *Transport) Network() uint32 { return t.network }

// EID returns the peer endpoint id this transport is bound to.
func (t *Transport) EID() uint8 { return t.eid }

// Name identifies this transport for diagnostics.
func (t *Transport) Name() string { return "mctp" }

// MICEnabled is always true for MCTP: every NVMe-MI message on MCTP
// carries a trailing Message Integrity Check.
func (t *Transport) MICEnabled() bool { return true }

// CheckTimeout accepts any timeout value; MCTP has no lower transport
// restriction on the wait duration.
func (t *Transport) CheckTimeout(ep *nvmemi.Endpoint, timeout time.Duration) error {
	return nil
}

// Describe renders "net N eid E", mirroring
// original_source/src/nvme/mi-mctp.c:nvme_mi_mctp_desc_ep.
func (t *Transport) Describe(ep *nvmemi.Endpoint) string {
	return fmt.Sprintf("net %d eid %d", t.network, t.eid)
}

// Close releases the datagram socket. Called once, via Endpoint.Close.
func (t *Transport) Close(ep *nvmemi.Endpoint) error {
	return t.ops.close(t.fd)
}

// logFor returns ep's logger tagged with the endpoint description and,
// when ctx carries one, the correlation id Submit attached at the top
// of the call — so an MPR retry's debug line can be tied back to the
// exchange that produced it.
func (t *Transport) logFor(ctx context.Context, ep *nvmemi.Endpoint) nvmemi.Logger {
	log := ep.Root().Logger().WithField("endpoint", ep.Describe())
	if id, ok := nvmemi.CorrelationID(ctx); ok {
		return log.WithField("correlation_id", id)
	}
	return log
}

// allocTag obtains a tag for one exchange. If the host kernel supports
// explicit tag allocation, the returned tag has its owner bit set and
// is tied to the peer EID, allowing correct MPR handling; if not, the
// generic MCTP_TAG_OWNER sentinel is used, which disables correct MPR
// support because the kernel will not keep the reverse tag pinned.
// The fallback is logged once per endpoint at info level and counted
// via the endpoint's metrics hook.
func (t *Transport) allocTag(ctx context.Context, ep *nvmemi.Endpoint) uint8 {
	var ctl mctpIocTagCtl
	ctl.peerAddr = t.eid

	if err := t.ops.ioctlTag(t.fd, siocMCTPAllocTag, &ctl); err != nil {
		if !t.loggedTagFallback {
			t.logFor(ctx, ep).
				Info("System does not support explicit MCTP tag allocation")
			t.loggedTagFallback = true
			ep.Root().Metrics().TagAllocFallback()
		}
		return mctpTagOwner
	}
	return ctl.tag
}

// dropTag releases a tag obtained from allocTag. It is idempotent for
// the generic sentinel: only a tag carrying the prealloc marker is
// actually dropped via ioctl.
func (t *Transport) dropTag(tag uint8) {
	if tag&mctpTagPrealloc == 0 {
		return
	}
	ctl := mctpIocTagCtl{peerAddr: t.eid, tag: tag}
	_ = t.ops.ioctlTag(t.fd, siocMCTPDropTag, &ctl)
}

// Submit performs one request/response exchange, including any MPR
// retries, following original_source/src/nvme/mi-mctp.c:nvme_mi_mctp_submit.
func (t *Transport) Submit(ctx context.Context, ep *nvmemi.Endpoint, req *nvmemi.Request, resp *nvmemi.Response) error {
	if len(resp.Header) < wire.AdminRespHdrLen {
		return &nvmemi.Error{Kind: nvmemi.KindInvalidArg, Msg: "response header buffer too small for a generic reply"}
	}

	tag := t.allocTag(ctx, ep)
	defer t.dropTag(tag)

	addr := sockaddrMCTP{network: t.network, eid: t.eid, msgType: mctpTypeNVMe | mctpTypeMIC, tag: tag}

	micBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(micBuf, req.MIC)

	sendBufs := [][]byte{req.Header[1:], req.Payload, micBuf}
	if err := t.ops.sendmsg(t.fd, addr, sendBufs); err != nil {
		t.logFor(ctx, ep).WithError(err).Error("failure sending MCTP message")
		return &nvmemi.Error{Kind: nvmemi.KindTransport, Msg: "sendmsg", Err: err}
	}

	timeout := ep.Timeout()
	for {
		ready, err := t.waitReadable(ctx, timeout)
		if err != nil {
			return err
		}
		if !ready {
			t.logFor(ctx, ep).Debug("timeout on MCTP socket")
			return &nvmemi.Error{Kind: nvmemi.KindTimeout, Msg: "waiting for MCTP response"}
		}

		respMIC := make([]byte, 4)
		recvBufs := [][]byte{resp.Header[1:], resp.Payload, respMIC}
		n, err := t.ops.recvmsg(t.fd, addr, recvBufs)
		if err != nil {
			t.logFor(ctx, ep).WithError(err).Error("failure receiving MCTP message")
			return &nvmemi.Error{Kind: nvmemi.KindTransport, Msg: "recvmsg", Err: err}
		}

		// The kernel strips the leading type byte from the payload it
		// hands back (it's carried out-of-band in the address); put it
		// back so downstream code sees a contiguous header, and count
		// it in the reconciliation length.
		resp.Header[0] = mctpTypeNVMe | mctpTypeMIC
		total := n + 1

		if total < 8+4 {
			return &nvmemi.Error{Kind: nvmemi.KindProtocol, Msg: "MCTP response too short"}
		}
		if total%4 != 0 {
			t.logFor(ctx, ep).Warn("MCTP response has an unaligned length")
			return &nvmemi.Error{Kind: nvmemi.KindProtocol, Msg: "MCTP response length not a multiple of 4"}
		}

		if mprTime, isMPR := detectMPR(resp.Header, resp.Payload, respMIC, total); isMPR {
			ep.Root().Metrics().MPRRetry()
			t.logFor(ctx, ep).Debug("received More Processing Required, waiting for response")

			wait := mprTime
			if wait == 0 {
				if ep.Timeout() > 0 {
					wait = ep.Timeout()
				} else {
					wait = 0xFFFF * 100 * time.Millisecond
				}
			}
			if mprtMax := ep.MprtMax(); mprtMax > 0 && wait > mprtMax {
				wait = mprtMax
			}
			timeout = wait
			continue
		}

		reconcile(resp, respMIC, total)
		resp.MIC = binary.LittleEndian.Uint32(respMIC)
		return nil
	}
}

// waitReadable polls the socket for readability, bounded by timeout
// (0 means wait indefinitely) and by ctx. EINTR restarts the wait
// against the remaining budget; ctx cancellation is an additional
// reason to stop, per spec.md §5's note that this is the only
// cooperative way to abort an in-flight receive short of closing the
// endpoint.
func (t *Transport) waitReadable(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		remaining := -1
		if timeout > 0 {
			left := time.Until(deadline)
			if left <= 0 {
				return false, nil
			}
			remaining = int(left / time.Millisecond)
		}

		select {
		case <-ctx.Done():
			return false, &nvmemi.Error{Kind: nvmemi.KindTimeout, Msg: "context canceled waiting for MCTP response", Err: ctx.Err()}
		default:
		}

		ready, err := t.ops.poll(t.fd, remaining)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return false, &nvmemi.Error{Kind: nvmemi.KindTransport, Msg: "polling MCTP socket", Err: err}
		}
		return ready, nil
	}
}

// detectMPR checks whether the just-received frame is a More
// Processing Required response: fixed length, MPR status byte, and a
// locally computed CRC matching the received MIC — all before the
// response has been laid out into its final header/payload split, so
// the MIC's location has to be worked out the same way reconcile does:
// inside the header buffer's tail if it's larger than the minimal MPR
// message, otherwise at the front of the payload buffer.
func detectMPR(header, payload, mic []byte, total int) (time.Duration, bool) {
	if total != wire.MPRRespLen+4 {
		return 0, false
	}
	m := wire.UnmarshalMPRResp(header[:wire.MPRRespLen])
	if m.Status != wire.MPRStatus {
		return 0, false
	}

	var micBytes []byte
	switch {
	case len(header) > wire.MPRRespLen:
		micBytes = header[wire.MPRRespLen : wire.MPRRespLen+4]
	case len(payload) >= 4:
		micBytes = payload[0:4]
	default:
		micBytes = mic
	}

	crc := ^wire.CRC32Update(0xffffffff, header[:wire.MPRRespLen])
	if binary.LittleEndian.Uint32(micBytes) != crc {
		return 0, false
	}
	// mprt is a device-reported 16-bit little-endian count of 100ms
	// units (spec.md §9's correction to the original's double
	// conversion bug).
	return time.Duration(m.MPRT) * 100 * time.Millisecond, true
}

// reconcile applies the three cases of spec.md §4.3 to align the
// caller's header/payload spans with the actual received length,
// copying the MIC word out of whichever span it landed in.
func reconcile(resp *nvmemi.Response, mic []byte, total int) {
	hdrLen := len(resp.Header)
	dataLen := len(resp.Payload)

	switch {
	case total == hdrLen+dataLen+4:
		// exact: nothing to adjust.
	case total < hdrLen+4:
		// Header alignment (%4==0 on both hdrLen and total) rules out
		// total landing strictly between hdrLen and hdrLen+4, so the
		// MIC's 4 bytes sit entirely inside what actually arrived in
		// the header span.
		newHdrLen := total - 4
		copy(mic, resp.Header[newHdrLen:total])
		resp.Header = resp.Header[:newHdrLen]
		resp.Payload = resp.Payload[:0]
	default:
		newDataLen := total - hdrLen - 4
		copy(mic, resp.Payload[newDataLen:newDataLen+4])
		resp.Payload = resp.Payload[:newDataLen]
	}
}
