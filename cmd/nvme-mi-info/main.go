// Command nvme-mi-info opens NVMe-MI endpoints over MCTP (the one
// named by -net/-eid, or every one found on D-Bus with -scan), scans
// each endpoint's controller topology, and prints subsystem and
// controller information. It exists to exercise the library end to end, the way
// cmd/aoed exercises the AoE server side of its teacher package.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"

	nvmemi "github.com/codeconstruct/nvme-mi"
	nvmedbus "github.com/codeconstruct/nvme-mi/dbus"
	"github.com/codeconstruct/nvme-mi/mctp"
)

var (
	netFlag     = flag.Uint("net", 0, "MCTP network id")
	eidFlag     = flag.Uint("eid", 0, "MCTP endpoint id")
	scanFlag    = flag.Bool("scan", false, "discover endpoints over D-Bus instead of using -net/-eid")
	timeoutFlag = flag.Duration("timeout", 5*time.Second, "per-request timeout")
	verboseFlag = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	if *verboseFlag {
		logger.SetLevel(logrus.DebugLevel)
	}

	root := nvmemi.NewRoot(nvmemi.WithLogger(logger))
	defer root.Close()

	endpoints, err := openEndpoints(root)
	if err != nil {
		log.Fatal(err)
	}
	if len(endpoints) == 0 {
		log.Fatal("no endpoints found")
	}

	ctx := context.Background()
	for _, ep := range endpoints {
		if err := describeEndpoint(ctx, ep); err != nil {
			logger.WithField("endpoint", ep.Describe()).WithError(err).Error("failed reading endpoint")
		}
	}
}

func openEndpoints(root *nvmemi.Root) ([]*nvmemi.Endpoint, error) {
	if *scanFlag {
		endpoints, errs, err := nvmedbus.ScanEndpoints(root, nvmedbus.WithTransportOptions(mctp.WithTimeout(*timeoutFlag)))
		for _, e := range errs {
			root.Logger().WithError(e).Warn("skipping malformed D-Bus endpoint record")
		}
		return endpoints, err
	}

	ep, err := mctp.Open(root, uint32(*netFlag), uint8(*eidFlag), mctp.WithTimeout(*timeoutFlag))
	if err != nil {
		return nil, fmt.Errorf("opening endpoint: %w", err)
	}
	return []*nvmemi.Endpoint{ep}, nil
}

func describeEndpoint(ctx context.Context, ep *nvmemi.Endpoint) error {
	fmt.Printf("endpoint: %s\n", ep.Describe())

	var subsys [32]byte
	if err := nvmemi.ReadMIDataSubsystemInfo(ctx, ep, subsys[:]); err != nil {
		return fmt.Errorf("subsystem info: %w", err)
	}
	fmt.Printf("  NVMe-MI major/minor: %d.%d\n", subsys[0], subsys[1])

	if err := nvmemi.ScanEndpoint(ctx, ep, false); err != nil {
		return fmt.Errorf("scanning controllers: %w", err)
	}

	for _, ctrl := range ep.Controllers() {
		var info [32]byte
		if err := nvmemi.ReadMIDataControllerInfo(ctx, ep, ctrl.ID(), info[:]); err != nil {
			fmt.Printf("  controller %d: error reading info: %v\n", ctrl.ID(), err)
			continue
		}
		portID := info[0]
		fmt.Printf("  controller %d: port %d\n", ctrl.ID(), portID)
	}

	var health [32]byte
	if err := nvmemi.SubsystemHealthStatusPoll(ctx, ep, false, health[:]); err != nil {
		return fmt.Errorf("subsystem health status poll: %w", err)
	}
	fmt.Printf("  composite temperature: %d K\n", binary.LittleEndian.Uint16(health[1:3]))

	return nil
}
