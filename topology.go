package nvmemi

import (
	"context"
	"encoding/binary"
)

// ScanEndpoint is the only discovery primitive for an endpoint's
// controllers: it issues Read MI Data (controller_list) and
// materialises a Controller for each non-zero identifier reported.
//
// Calling it on an endpoint that has already been scanned is a no-op
// unless force is true, in which case every existing controller is
// destroyed first (spec.md §4.6).
func ScanEndpoint(ctx context.Context, ep *Endpoint, force bool) error {
	if ep.controllersScanned {
		if !force {
			return nil
		}
		for _, c := range append([]*Controller(nil), ep.controllers...) {
			c.Close()
		}
	}

	buf := make([]byte, controllerListBufLen)
	n, err := ReadMIDataControllerList(ctx, ep, 0, buf)
	if err != nil {
		return err
	}
	if n < 2 {
		return newErr(KindProtocol, "controller list reply shorter than count field")
	}

	numCtrl := int(binary.LittleEndian.Uint16(buf[0:2]))
	if numCtrl > controllerListMax {
		return newErr(KindProtocol, "controller list count exceeds NVME_ID_CTRL_LIST_MAX")
	}

	for i := 0; i < numCtrl; i++ {
		off := 2 + i*2
		if off+2 > n {
			break
		}
		id := binary.LittleEndian.Uint16(buf[off : off+2])
		if id == 0 {
			continue
		}
		ep.addController(&Controller{ep: ep, id: id})
	}

	ep.controllersScanned = true
	return nil
}
