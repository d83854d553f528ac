package discovery

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// PortOptions are the control API ports tried by Probe, in order.
// Current firmware uses 7345; pre-4.0 firmware used 9000.
var PortOptions = []int{7345, 9000}

// deviceDescription is the subset of the UPnP device description XML
// the scanner cares about
type deviceDescription struct {
	Device struct {
		FriendlyName string `xml:"friendlyName"`
		Manufacturer string `xml:"manufacturer"`
		ModelName    string `xml:"modelName"`
		UDN          string `xml:"UDN"`
	} `xml:"device"`
}

// describe fetches and parses the UPnP description a discovery reply points
// at. Returns (nil, nil) for well-formed descriptions of other vendors'
// devices, and an error for descriptions that cannot be fetched or parsed.
func (s *Scanner) describe(ctx context.Context, location string) (*Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid description URL: %w", err)
	}

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch description: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("description fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read description: %w", err)
	}

	var desc deviceDescription
	if err := xml.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("malformed description XML: %w", err)
	}

	if desc.Device.Manufacturer != smartcastManufacturer {
		return nil, nil
	}

	uuid := desc.Device.UDN
	if m := uuidPattern.FindStringSubmatch(uuid); m != nil {
		uuid = m[1]
	}
	if uuid == "" {
		return nil, fmt.Errorf("description has empty UDN")
	}

	locURL, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION %q: %w", location, err)
	}
	ip := locURL.Hostname()
	if ip == "" {
		return nil, fmt.Errorf("LOCATION %q has no host", location)
	}

	return &Descriptor{
		UUID:         uuid,
		Name:         desc.Device.FriendlyName,
		Manufacturer: desc.Device.Manufacturer,
		Model:        desc.Device.ModelName,
		IP:           ip,
		Port:         DefaultAPIPort,
		DiscoveredAt: time.Now(),
	}, nil
}

// Probe checks a known address for a reachable control API without
// multicast discovery, trying each port in PortOptions. The returned
// descriptor carries the address only; UUID and name stay empty since
// the liveness endpoint does not report them.
//
// Devices present self-signed certificates, so certificate verification
// is disabled for the probe, as it is for the dispatcher.
func Probe(ctx context.Context, host string) (*Descriptor, error) {
	client := &http.Client{
		Timeout: 2 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	var lastErr error
	for _, port := range PortOptions {
		addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
		probeURL := fmt.Sprintf("https://%s/state/device/power_mode", addr)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
		if err != nil {
			return nil, &DiscoveryError{Message: "invalid probe address", Err: err}
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_ = resp.Body.Close()

		// Any HTTP response at all means the control API answered;
		// auth failures are still proof of life
		return &Descriptor{
			IP:           host,
			Port:         port,
			DiscoveredAt: time.Now(),
		}, nil
	}

	return nil, &DiscoveryError{
		Message: fmt.Sprintf("no control API reachable on %s", host),
		Err:     lastErr,
	}
}
