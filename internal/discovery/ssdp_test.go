package discovery

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func descriptionXML(name, manufacturer, model, udn string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <device>
    <deviceType>urn:dial-multiscreen-org:device:dial:1</deviceType>
    <friendlyName>%s</friendlyName>
    <manufacturer>%s</manufacturer>
    <modelName>%s</modelName>
    <UDN>%s</UDN>
  </device>
</root>`, name, manufacturer, model, udn)
}

func ssdpReply(location string) string {
	return strings.Join([]string{
		"HTTP/1.1 200 OK",
		"CACHE-CONTROL: max-age=1800",
		"ST: " + SearchTarget,
		"LOCATION: " + location,
		"USN: uuid:device::" + SearchTarget,
		"",
		"",
	}, "\r\n")
}

// startResponder runs a one-shot SSDP responder on loopback: it waits for
// one M-SEARCH datagram and answers with each reply in order. Returns the
// address to use as the scanner's search address.
func startResponder(t *testing.T, replies []string) string {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to bind responder: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		_, from, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		for _, reply := range replies {
			_, _ = conn.WriteTo([]byte(reply), from)
		}
	}()

	return conn.LocalAddr().String()
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantLocation string
		wantErr      bool
	}{
		{
			name:         "well-formed",
			raw:          ssdpReply("http://192.168.1.42:8008/ssdp/device-desc.xml"),
			wantLocation: "http://192.168.1.42:8008/ssdp/device-desc.xml",
		},
		{
			name: "extra vendor headers tolerated",
			raw: strings.Join([]string{
				"HTTP/1.1 200 OK",
				"LOCATION: http://192.168.1.42:8008/desc.xml",
				"X-VENDOR-THING: whatever",
				"BOOTID.UPNP.ORG: 3",
				"",
				"",
			}, "\r\n"),
			wantLocation: "http://192.168.1.42:8008/desc.xml",
		},
		{
			name:    "not a 200 status",
			raw:     "HTTP/1.1 404 Not Found\r\nLOCATION: http://x/desc.xml\r\n\r\n",
			wantErr: true,
		},
		{
			name:    "notify instead of reply",
			raw:     "NOTIFY * HTTP/1.1\r\nLOCATION: http://x/desc.xml\r\n\r\n",
			wantErr: true,
		},
		{
			name:    "missing location",
			raw:     "HTTP/1.1 200 OK\r\nST: " + SearchTarget + "\r\n\r\n",
			wantErr: true,
		},
		{
			name:    "unparseable location",
			raw:     "HTTP/1.1 200 OK\r\nLOCATION: not a url\r\n\r\n",
			wantErr: true,
		},
		{
			name:    "binary garbage",
			raw:     "\x00\x01\x02\x03",
			wantErr: true,
		},
		{
			name:    "empty datagram",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location, err := parseReply([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseReply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && location != tt.wantLocation {
				t.Errorf("location = %q, want %q", location, tt.wantLocation)
			}
		})
	}
}

func TestSearchRequest(t *testing.T) {
	s := &Scanner{Timeout: 3 * time.Second, SearchAddr: SearchAddr}
	req := string(s.searchRequest())

	for _, want := range []string{
		"M-SEARCH * HTTP/1.1",
		"HOST: " + SearchAddr,
		`MAN: "ssdp:discover"`,
		"ST: " + SearchTarget,
		"MX: 3",
	} {
		if !strings.Contains(req, want) {
			t.Errorf("search request missing %q", want)
		}
	}
	if !strings.HasSuffix(req, "\r\n\r\n") {
		t.Error("search request not terminated with blank line")
	}
}

func TestScan(t *testing.T) {
	tv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, descriptionXML("Living Room TV", "Vizio", "V505-G9",
			"uuid:bf2498a4-5a2f-4d5a-9d2f-8c6b31e0c8a1"))
	}))
	defer tv.Close()

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, descriptionXML("Chromecast", "Google Inc.", "Chromecast",
			"uuid:11111111-2222-3333-4444-555555555555"))
	}))
	defer other.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<root><device>truncated")
	}))
	defer broken.Close()

	addr := startResponder(t, []string{
		ssdpReply(tv.URL + "/desc.xml"),
		ssdpReply(other.URL + "/desc.xml"),  // wrong manufacturer, dropped
		ssdpReply(broken.URL + "/desc.xml"), // unparseable description, dropped
		"not even ssdp",                     // malformed datagram, dropped
		ssdpReply(tv.URL + "/desc.xml"),     // duplicate of the first
	})

	s := &Scanner{
		Timeout:    500 * time.Millisecond,
		SearchAddr: addr,
		HTTPClient: &http.Client{Timeout: time.Second},
	}

	devices, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1: %v", len(devices), devices)
	}

	d := devices[0]
	if d.UUID != "bf2498a4-5a2f-4d5a-9d2f-8c6b31e0c8a1" {
		t.Errorf("UUID = %q, want the uuid: prefix stripped", d.UUID)
	}
	if d.Name != "Living Room TV" || d.Model != "V505-G9" {
		t.Errorf("device = %+v", d)
	}
	if d.IP != "127.0.0.1" {
		t.Errorf("IP = %q, want the description host", d.IP)
	}
	if d.Port != DefaultAPIPort {
		t.Errorf("Port = %d, want %d", d.Port, DefaultAPIPort)
	}
}

func TestScanNoReplies(t *testing.T) {
	addr := startResponder(t, nil)

	s := &Scanner{
		Timeout:    200 * time.Millisecond,
		SearchAddr: addr,
		HTTPClient: &http.Client{Timeout: time.Second},
	}

	devices, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() with no replies: error = %v, want nil", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0", len(devices))
	}
}

func TestScanCancellation(t *testing.T) {
	addr := startResponder(t, nil)

	s := &Scanner{
		Timeout:    time.Minute,
		SearchAddr: addr,
		HTTPClient: &http.Client{Timeout: time.Second},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if _, err := s.Scan(ctx); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Scan() took %s after cancellation", elapsed)
	}
}

func TestFindByUUID(t *testing.T) {
	tv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, descriptionXML("Bedroom TV", "Vizio", "M55Q7",
			"uuid:aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"))
	}))
	defer tv.Close()

	addr := startResponder(t, []string{ssdpReply(tv.URL + "/desc.xml")})

	s := &Scanner{
		Timeout:    500 * time.Millisecond,
		SearchAddr: addr,
		HTTPClient: &http.Client{Timeout: time.Second},
	}

	d, err := s.FindByUUID(context.Background(), "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	if err != nil {
		t.Fatalf("FindByUUID() error = %v", err)
	}
	if d == nil || d.Name != "Bedroom TV" {
		t.Fatalf("device = %+v, want Bedroom TV", d)
	}

	addr = startResponder(t, []string{ssdpReply(tv.URL + "/desc.xml")})
	s.SearchAddr = addr
	d, err = s.FindByUUID(context.Background(), "no-such-uuid")
	if err != nil {
		t.Fatalf("FindByUUID() error = %v", err)
	}
	if d != nil {
		t.Errorf("device = %+v, want nil for unknown UUID", d)
	}
}
