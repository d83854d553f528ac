package discovery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/calbright/smartcast/internal/logging"
)

const (
	// SearchAddr is the SSDP multicast group and port
	SearchAddr = "239.255.255.250:1900"

	// SearchTarget is the SSDP search target SmartCast devices respond to
	SearchTarget = "urn:dial-multiscreen-org:device:dial:1"

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 3 * time.Second

	// DefaultAPIPort is the control API port on current firmware.
	// Older firmware listens on 9000 instead; see Probe.
	DefaultAPIPort = 7345

	// smartcastManufacturer filters SSDP replies to SmartCast devices;
	// the DIAL search target is answered by many other device kinds
	smartcastManufacturer = "Vizio"
)

// uuidPattern strips an optional "uuid:" style prefix from a UPnP UDN
var uuidPattern = regexp.MustCompile(`^(?:\w+\s*:\s*)?(.*)$`)

// DiscoveryError indicates the local network transport could not be
// initialized for a scan. Zero devices responding is not a DiscoveryError;
// an empty result is a valid outcome.
type DiscoveryError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("discovery: %s", e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Scanner handles SSDP device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for device replies
	Timeout time.Duration

	// SearchAddr is the address the M-SEARCH query is sent to.
	// Defaults to the SSDP multicast group; tests point it at a
	// local responder.
	SearchAddr string

	// HTTPClient fetches UPnP device descriptions from reply locations
	HTTPClient *http.Client

	// browse overrides the mDNS browse call; tests substitute stubs.
	// Nil means a real zeroconf resolver.
	browse func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// NewScanner creates a new SSDP scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout:    DefaultScanTimeout,
		SearchAddr: SearchAddr,
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
	}
}

// Scan discovers SmartCast devices on the local network.
//
// It sends a single SSDP M-SEARCH query and collects unicast replies until
// the timeout elapses or ctx is cancelled. Replies that cannot be parsed,
// or that describe non-SmartCast devices, are dropped silently. Results are
// deduplicated by UUID, ordered by first arrival; when the same device
// replies from two addresses, the last-seen address wins.
//
// The temporary receive socket is released before Scan returns.
func (s *Scanner) Scan(ctx context.Context) ([]*Descriptor, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, &DiscoveryError{Message: "failed to bind discovery socket", Err: err}
	}
	defer func() { _ = conn.Close() }()

	dst, err := net.ResolveUDPAddr("udp4", s.SearchAddr)
	if err != nil {
		return nil, &DiscoveryError{Message: "invalid search address", Err: err}
	}

	if _, err := conn.WriteTo(s.searchRequest(), dst); err != nil {
		return nil, &DiscoveryError{Message: "failed to send search query", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	// Unblock the read loop when the deadline passes or the caller cancels
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	devices := make([]*Descriptor, 0)
	index := make(map[string]int) // UUID -> position in devices

	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			// Deadline reached or socket closed; the scan is over
			break
		}

		location, err := parseReply(buf[:n])
		if err != nil {
			logging.Debug("dropping malformed discovery reply",
				zap.String("remote_addr", from.String()),
				zap.Error(err),
			)
			continue
		}
		logging.LogDiscoveryReply(from.String(), location)

		device, err := s.describe(ctx, location)
		if err != nil {
			logging.Debug("dropping discovery reply without usable description",
				zap.String("location", location),
				zap.Error(err),
			)
			continue
		}
		if device == nil {
			// Well-formed reply from a non-SmartCast device
			continue
		}

		if i, seen := index[device.UUID]; seen {
			// Same device, possibly at a new address
			devices[i] = device
			continue
		}
		index[device.UUID] = len(devices)
		devices = append(devices, device)
	}

	return devices, nil
}

// FindByUUID scans for a specific device by its UUID.
// Returns nil without error if no matching device replies within the timeout.
func (s *Scanner) FindByUUID(ctx context.Context, uuid string) (*Descriptor, error) {
	devices, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.UUID == uuid {
			return d, nil
		}
	}
	return nil, nil
}

// searchRequest builds the SSDP M-SEARCH datagram
func (s *Scanner) searchRequest() []byte {
	mx := int(s.Timeout / time.Second)
	if mx < 1 {
		mx = 1
	}
	lines := []string{
		"M-SEARCH * HTTP/1.1",
		"HOST: " + s.SearchAddr,
		`MAN: "ssdp:discover"`,
		"ST: " + SearchTarget,
		fmt.Sprintf("MX: %d", mx),
		"",
		"",
	}
	return []byte(strings.Join(lines, "\r\n"))
}

// parseReply extracts the LOCATION header from an SSDP reply datagram.
// Vendor-specific extra headers are tolerated; only the status line and
// LOCATION are required.
func parseReply(raw []byte) (string, error) {
	reader := bufio.NewReader(bytes.NewReader(raw))

	status, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reply has no status line: %w", err)
	}
	if !strings.HasPrefix(status, "HTTP/1.1 200") {
		return "", fmt.Errorf("unexpected status line %q", strings.TrimSpace(status))
	}

	headers, err := textproto.NewReader(reader).ReadMIMEHeader()
	if err != nil {
		return "", fmt.Errorf("malformed reply headers: %w", err)
	}

	location := headers.Get("Location")
	if location == "" {
		return "", fmt.Errorf("reply has no LOCATION header")
	}
	if _, err := url.ParseRequestURI(location); err != nil {
		return "", fmt.Errorf("invalid LOCATION %q: %w", location, err)
	}

	return location, nil
}
