package mctp

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// socketOps is the injectable syscall vtable spec.md §9 calls for:
// "prefer injecting a per-endpoint... syscall vtable rather than a
// singleton." Each Transport gets its own socketOps value (defaultOps
// unless a test overrides it via WithSocketOps), rather than the
// process-wide static `ops` table mi-mctp.c uses.
type socketOps struct {
	socket   func() (int, error)
	sendmsg  func(fd int, addr sockaddrMCTP, iovs [][]byte) error
	recvmsg  func(fd int, addr sockaddrMCTP, iovs [][]byte) (int, error)
	poll     func(fd int, timeoutMs int) (ready bool, err error)
	ioctlTag func(fd int, req uintptr, ctl *mctpIocTagCtl) error
	close    func(fd int) error
}

func defaultSocketOps() socketOps {
	return socketOps{
		socket:   sysSocket,
		sendmsg:  sysSendmsg,
		recvmsg:  sysRecvmsg,
		poll:     sysPoll,
		ioctlTag: sysIoctlTag,
		close:    unix.Close,
	}
}

func sysSocket() (int, error) {
	return unix.Socket(afMCTP, unix.SOCK_DGRAM, 0)
}

// buildIovecs turns a set of caller-owned byte slices into the
// unix.Iovec array a raw sendmsg/recvmsg syscall expects. Empty
// slices still contribute an iovec entry with a nil base and zero
// length, matching msghdr semantics for zero-length payloads.
func buildIovecs(bufs [][]byte) []unix.Iovec {
	iovs := make([]unix.Iovec, len(bufs))
	for i, b := range bufs {
		if len(b) > 0 {
			iovs[i].Base = &b[0]
		}
		iovs[i].SetLen(len(b))
	}
	return iovs
}

// sysSendmsg issues one scatter-gather sendmsg(2) call carrying iovs
// to addr, following the raw ioctl/syscall pattern grounded on
// other_examples/minio-directpv__nvme.go's unsafe.Pointer-cast ioctl
// calls: golang.org/x/sys/unix has no sockaddr_mctp-aware Sendmsg, so
// this goes straight to the syscall with our own msghdr.
func sysSendmsg(fd int, addr sockaddrMCTP, bufs [][]byte) error {
	name := addr.bytes()
	iovs := buildIovecs(bufs)

	var msg unix.Msghdr
	msg.Name = &name[0]
	msg.Namelen = uint32(len(name))
	if len(iovs) > 0 {
		msg.Iov = &iovs[0]
	}
	msg.SetIovlen(len(iovs))

	_, _, errno := unix.Syscall(unix.SYS_SENDMSG, uintptr(fd), uintptr(unsafe.Pointer(&msg)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// sysRecvmsg issues one non-blocking scatter-gather recvmsg(2) call
// into bufs, returning the total byte count placed across all iovecs
// (which may be less than the sum of their capacities, per spec.md
// §4.3's truncation cases).
func sysRecvmsg(fd int, addr sockaddrMCTP, bufs [][]byte) (int, error) {
	name := addr.bytes()
	iovs := buildIovecs(bufs)

	var msg unix.Msghdr
	msg.Name = &name[0]
	msg.Namelen = uint32(len(name))
	if len(iovs) > 0 {
		msg.Iov = &iovs[0]
	}
	msg.SetIovlen(len(iovs))

	n, _, errno := unix.Syscall(unix.SYS_RECVMSG, uintptr(fd), uintptr(unsafe.Pointer(&msg)), uintptr(unix.MSG_DONTWAIT))
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

func sysPoll(fd int, timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func sysIoctlTag(fd int, req uintptr, ctl *mctpIocTagCtl) error {
	b := ctl.bytes()
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&b[0])))
	if errno != 0 {
		return errno
	}
	ctl.fromBytes(b)
	return nil
}
