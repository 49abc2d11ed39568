// Package dbus discovers NVMe-MI-capable MCTP endpoints advertised on
// a system D-Bus, the way original_source/src/nvme/mi-mctp.c's
// nvme_mi_scan_mctp walks xyz.openbmc_project.MCTP.Endpoint objects
// under org.freedesktop.DBus.ObjectManager.
//
// This package only exists to turn D-Bus objects into opened
// mctp.Transport endpoints; it has no notion of the NVMe-MI protocol
// itself.
package dbus

import (
	"fmt"

	godbus "github.com/godbus/dbus/v5"

	"github.com/codeconstruct/nvme-mi"
	"github.com/codeconstruct/nvme-mi/mctp"
)

const (
	mctpService       = "xyz.openbmc_project.MCTP"
	mctpObjectPath    = "/xyz/openbmc_project/mctp"
	mctpEndpointIface = "xyz.openbmc_project.MCTP.Endpoint"
	objectManagerCall = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"

	// mctpTypeNVMe is MCTP_TYPE_NVME from mi-mctp.c; SupportedMessageTypes
	// must list it for an endpoint to be worth opening.
	mctpTypeNVMe byte = 0x04
)

// EndpointRecord is one xyz.openbmc_project.MCTP.Endpoint object's
// properties, decoded from its D-Bus variant map.
type EndpointRecord struct {
	ObjectPath            godbus.ObjectPath
	EID                   uint8
	NetworkID             int32
	SupportedMessageTypes []byte
}

// supportsNVMeMI reports whether the endpoint's SupportedMessageTypes
// property lists MCTP_TYPE_NVME.
func (r EndpointRecord) supportsNVMeMI() bool {
	for _, ty := range r.SupportedMessageTypes {
		if ty == mctpTypeNVMe {
			return true
		}
	}
	return false
}

// managedObjects is the shape org.freedesktop.DBus.ObjectManager's
// GetManagedObjects reply decodes into: object path, then interface
// name, then property name to value.
type managedObjects map[godbus.ObjectPath]map[string]map[string]godbus.Variant

// RecordError pairs a malformed or incomplete endpoint record with the
// reason it was skipped. A scan collects these rather than aborting,
// mirroring handle_mctp_endpoint's per-object error handling.
type RecordError struct {
	ObjectPath godbus.ObjectPath
	Err        error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("dbus: endpoint %s: %v", e.ObjectPath, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// ScanOption configures ScanEndpoints.
type ScanOption func(*scanConfig)

type scanConfig struct {
	conn        *godbus.Conn
	mctpOptions []mctp.Option
}

// WithConnection uses an already-open bus connection instead of
// dialing the system bus. ScanEndpoints does not take ownership of it.
func WithConnection(conn *godbus.Conn) ScanOption {
	return func(c *scanConfig) { c.conn = conn }
}

// WithTransportOptions forwards options to every mctp.Open call the
// scan makes (e.g. mctp.WithTimeout, mctp.WithMprtMax).
func WithTransportOptions(opts ...mctp.Option) ScanOption {
	return func(c *scanConfig) { c.mctpOptions = opts }
}

// ScanEndpoints queries the system D-Bus for MCTP endpoints
// advertising NVMe-MI support and opens an nvmemi.Endpoint on root for
// each one not already present. A malformed or incomplete record is
// collected into the returned []error rather than aborting the scan,
// matching nvme_mi_mctp_add/handle_mctp_endpoint's per-object error
// handling; an error connecting to the bus or issuing the
// GetManagedObjects call is fatal and returned directly.
func ScanEndpoints(root *nvmemi.Root, opts ...ScanOption) ([]*nvmemi.Endpoint, []error, error) {
	cfg := scanConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn := cfg.conn
	if conn == nil {
		c, err := godbus.ConnectSystemBus()
		if err != nil {
			return nil, nil, &nvmemi.Error{Kind: nvmemi.KindTransport, Msg: "connecting to system D-Bus", Err: err}
		}
		conn = c
		defer conn.Close()
	}

	var objects managedObjects
	call := conn.Object(mctpService, godbus.ObjectPath(mctpObjectPath)).Call(objectManagerCall, 0)
	if call.Err != nil {
		return nil, nil, &nvmemi.Error{Kind: nvmemi.KindTransport, Msg: "querying MCTP D-Bus", Err: call.Err}
	}
	if err := call.Store(&objects); err != nil {
		return nil, nil, &nvmemi.Error{Kind: nvmemi.KindProtocol, Msg: "decoding GetManagedObjects reply", Err: err}
	}

	type key struct {
		net uint32
		eid uint8
	}
	already := make(map[key]bool)
	for _, ep := range root.Endpoints() {
		if d, ok := ep.Transport().(*mctp.Transport); ok {
			already[key{d.Network(), d.EID()}] = true
		}
	}

	var endpoints []*nvmemi.Endpoint
	var errs []error
	for path, ifaces := range objects {
		props, ok := ifaces[mctpEndpointIface]
		if !ok {
			continue
		}

		rec, err := decodeEndpointRecord(path, props)
		if err != nil {
			errs = append(errs, &RecordError{ObjectPath: path, Err: err})
			continue
		}
		if rec == nil || !rec.supportsNVMeMI() {
			continue
		}

		k := key{uint32(rec.NetworkID), rec.EID}
		if already[k] {
			continue
		}
		already[k] = true

		ep, err := mctp.Open(root, uint32(rec.NetworkID), rec.EID, cfg.mctpOptions...)
		if err != nil {
			errs = append(errs, &RecordError{ObjectPath: path, Err: err})
			continue
		}
		endpoints = append(endpoints, ep)
	}

	return endpoints, errs, nil
}

// decodeEndpointRecord reads EID, NetworkId and SupportedMessageTypes
// out of one Endpoint interface's property map. A nil, nil return
// means the object has the interface but doesn't advertise NVMe-MI
// support, which is not an error.
func decodeEndpointRecord(path godbus.ObjectPath, props map[string]godbus.Variant) (*EndpointRecord, error) {
	rec := EndpointRecord{ObjectPath: path}
	var haveEID, haveNet bool

	for name, v := range props {
		switch name {
		case "EID":
			b, ok := v.Value().(byte)
			if !ok {
				return nil, fmt.Errorf("EID property has type %T, want byte", v.Value())
			}
			rec.EID = uint8(b)
			haveEID = true
		case "NetworkId":
			n, ok := v.Value().(int32)
			if !ok {
				return nil, fmt.Errorf("NetworkId property has type %T, want int32", v.Value())
			}
			rec.NetworkID = n
			haveNet = true
		case "SupportedMessageTypes":
			types, ok := v.Value().([]byte)
			if !ok {
				return nil, fmt.Errorf("SupportedMessageTypes property has type %T, want []byte", v.Value())
			}
			rec.SupportedMessageTypes = types
		}
	}

	if !rec.supportsNVMeMI() {
		return nil, nil
	}
	if !haveEID || !haveNet {
		return nil, fmt.Errorf("missing EID or NetworkId property")
	}
	return &rec, nil
}
