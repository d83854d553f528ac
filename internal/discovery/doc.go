// Package discovery locates SmartCast devices on the local network.
//
// The primary mechanism is SSDP: a single M-SEARCH query is multicast to
// 239.255.255.250:1900 with the DIAL search target, and unicast replies are
// collected until the scan timeout elapses. Each reply's LOCATION header
// points at a UPnP device description XML, which is fetched to obtain the
// friendly name, model, and stable device UUID. Replies from other vendors'
// DIAL devices are filtered out by manufacturer.
//
// # Discovery Process
//
//  1. Bind a temporary UDP socket and multicast one M-SEARCH query
//  2. Collect unicast replies until the timeout elapses
//  3. Fetch and parse the UPnP description each reply points at
//  4. Keep SmartCast devices, deduplicated by UUID (last address wins)
//
// Malformed replies are logged at debug level and dropped; a single bad
// responder never fails a scan. Zero devices responding yields an empty
// result with a nil error. A DiscoveryError is returned only when the local
// socket cannot be initialized.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	devices, err := scanner.Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range devices {
//	    fmt.Printf("Found: %s (%s) at %s\n", d.Name, d.UUID, d.HostPort())
//	}
//
// # Alternate Paths
//
// ScanMDNS browses the "_viziocast._tcp" mDNS service for networks that
// filter SSDP multicast. Probe checks a known address directly, trying the
// control API ports in PortOptions, for setups where discovery is not
// possible at all.
//
// # Network Requirements
//
//   - A multicast-capable interface on the local network segment
//   - Firewall must allow outbound UDP 1900 and the unicast replies
//
// # Thread Safety
//
// Scans share no state with each other or with device sessions; multiple
// scans can run concurrently.
package discovery
