package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Descriptor represents a discovered SmartCast device on the network.
//
// Descriptors are immutable once returned by a scan. Two descriptors refer
// to the same physical device when their UUIDs match; the address may change
// between scans (DHCP), the UUID never does.
type Descriptor struct {
	// UUID is the stable device identifier, stripped of the UPnP
	// "uuid:" prefix (e.g., "bf2498a4-5a2f-4d5a-9d2f-8c6b31e0c8a1")
	UUID string

	// Name is the device's user-visible friendly name (e.g., "Living Room TV")
	Name string

	// Manufacturer as reported in the UPnP device description
	Manufacturer string

	// Model is the device model name (e.g., "V505-G9")
	Model string

	// IP is the device address (IPv4 dotted quad)
	IP string

	// Port is the control API port (typically 7345, 9000 on older firmware)
	Port int

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Descriptor) String() string {
	return fmt.Sprintf("SmartCast Device %q (%s) at %s", d.Name, d.Model, d.HostPort())
}

// HostPort returns the control API address as "ip:port"
func (d *Descriptor) HostPort() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}
