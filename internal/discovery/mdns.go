package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// MDNSService is the mDNS service type SmartCast devices advertise
	MDNSService = "_viziocast._tcp"

	// MDNSDomain is the mDNS domain (typically "local.")
	MDNSDomain = "local."
)

// ScanMDNS discovers SmartCast devices via mDNS/DNS-SD.
//
// SmartCast devices advertise on mDNS in addition to answering SSDP
// queries; this path is useful on networks that filter SSDP multicast.
// SSDP remains the primary discovery mechanism because the mDNS
// advertisement omits the UPnP description, leaving manufacturer and
// model unknown.
func (s *Scanner) ScanMDNS(ctx context.Context) ([]*Descriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	browse := s.browse
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, &DiscoveryError{Message: "failed to create mDNS resolver", Err: err}
		}
		browse = resolver.Browse
	}

	entries := make(chan *zeroconf.ServiceEntry)
	devices := make([]*Descriptor, 0)
	index := make(map[string]int)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			device := parseMDNSEntry(entry)
			if device == nil {
				continue
			}
			if i, seen := index[device.UUID]; seen {
				devices[i] = device
				continue
			}
			index[device.UUID] = len(devices)
			devices = append(devices, device)
		}
	}()

	if err := browse(ctx, MDNSService, MDNSDomain, entries); err != nil {
		// Browse did not take ownership of the channel; release the
		// collector before surfacing the error
		close(entries)
		<-done
		return nil, &DiscoveryError{Message: "failed to browse for mDNS services", Err: err}
	}

	// Browse closes the entries channel when ctx expires
	<-done

	return devices, nil
}

// parseMDNSEntry converts a zeroconf service entry to a Descriptor.
// Returns nil if the entry is missing an address or identifier.
func parseMDNSEntry(entry *zeroconf.ServiceEntry) *Descriptor {
	// Get IP address (prefer IPv4)
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultAPIPort
	}

	// TXT records are in "key=value" format; the device identifier is
	// advertised under "uuid"
	var uuid, model string
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "uuid":
			uuid = parts[1]
		case "mdl":
			model = parts[1]
		}
	}
	if uuid == "" {
		return nil
	}

	return &Descriptor{
		UUID:         uuid,
		Name:         entry.Instance,
		Manufacturer: smartcastManufacturer,
		Model:        model,
		IP:           ip,
		Port:         port,
		DiscoveredAt: time.Now(),
	}
}

// String returns a short description of the scanner configuration,
// useful in debug logs
func (s *Scanner) String() string {
	return fmt.Sprintf("Scanner(search=%s timeout=%s)", s.SearchAddr, s.Timeout)
}
