package device

import (
	"context"
	"errors"
	"testing"

	"github.com/calbright/smartcast/internal/protocol"
)

// dispatchCall records one request seen by the mock dispatcher
type dispatchCall struct {
	method string
	path   string
	body   any
	token  string
}

// mockDispatcher implements Dispatcher, recording every request and
// answering from handler. The default handler returns a bare success
// envelope.
type mockDispatcher struct {
	calls   []dispatchCall
	handler func(call dispatchCall) (*protocol.Response, error)
}

func (m *mockDispatcher) Send(ctx context.Context, method, path string, body any, token string) (*protocol.Response, error) {
	call := dispatchCall{method: method, path: path, body: body, token: token}
	m.calls = append(m.calls, call)
	if m.handler != nil {
		return m.handler(call)
	}
	return parseBody(`{"STATUS":{"RESULT":"SUCCESS"}}`)
}

func parseBody(raw string) (*protocol.Response, error) {
	return protocol.ParseEnvelope(200, []byte(raw))
}

const (
	startBody = `{"STATUS":{"RESULT":"SUCCESS"},"ITEM":{"PAIRING_REQ_TOKEN":428043,"CHALLENGE_TYPE":1}}`
	pairBody  = `{"STATUS":{"RESULT":"SUCCESS"},"ITEM":{"AUTH_TOKEN":"Zexampletoken"}}`
)

func newTestSession(m *mockDispatcher) *Session {
	return NewSessionAddr("192.0.2.10", 7345,
		WithDispatcher(m),
		WithClientIdentity("test-client", "test"),
	)
}

func TestAuthenticatedOpsRequirePairing(t *testing.T) {
	node := &SettingsNode{CName: "backlight", Kind: KindSlider, path: "picture/backlight"}

	ops := []struct {
		name string
		call func(s *Session) error
	}{
		{"SubmitPIN", func(s *Session) error { return s.SubmitPIN(context.Background(), "1234") }},
		{"ReadSettings", func(s *Session) error { _, err := s.ReadSettings(context.Background(), ""); return err }},
		{"WriteSetting", func(s *Session) error { return s.WriteSetting(context.Background(), node, 50) }},
		{"Press", func(s *Session) error { return s.Press(context.Background(), KeyVolumeUp) }},
		{"Info", func(s *Session) error { _, err := s.Info(context.Background()); return err }},
		{"Inputs", func(s *Session) error { _, err := s.Inputs(context.Background()); return err }},
		{"CurrentInput", func(s *Session) error { _, err := s.CurrentInput(context.Background()); return err }},
		{"SetInput", func(s *Session) error { return s.SetInput(context.Background(), "HDMI-1") }},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			mock := &mockDispatcher{}
			s := newTestSession(mock)

			err := op.call(s)
			if op.name == "SubmitPIN" {
				if !errors.Is(err, ErrNoPairing) {
					t.Errorf("error = %v, want ErrNoPairing", err)
				}
			} else if !errors.Is(err, ErrNotAuthenticated) {
				t.Errorf("error = %v, want ErrNotAuthenticated", err)
			}
			if len(mock.calls) != 0 {
				t.Errorf("dispatcher saw %d requests, want 0", len(mock.calls))
			}
		})
	}
}

func TestPairingHappyPath(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			switch call.path {
			case "/pairing/start":
				return parseBody(startBody)
			case "/pairing/pair":
				return parseBody(pairBody)
			default:
				t.Fatalf("unexpected request to %s", call.path)
				return nil, nil
			}
		},
	}
	s := newTestSession(mock)

	needsPIN, err := s.BeginPair(context.Background(), "living room")
	if err != nil {
		t.Fatalf("BeginPair() error = %v", err)
	}
	if !needsPIN {
		t.Error("needsPIN = false, want true for challenge type 1")
	}
	if s.State() != Pairing {
		t.Fatalf("state = %v, want Pairing", s.State())
	}

	if err := s.SubmitPIN(context.Background(), "43 21"); err != nil {
		t.Fatalf("SubmitPIN() error = %v", err)
	}
	if s.State() != Paired {
		t.Errorf("state = %v, want Paired", s.State())
	}
	if s.Token() != "Zexampletoken" {
		t.Errorf("Token() = %q, want Zexampletoken", s.Token())
	}

	// The challenge must echo the process id from start, with the PIN
	// normalized and no auth token attached
	if len(mock.calls) != 2 {
		t.Fatalf("dispatcher saw %d requests, want 2", len(mock.calls))
	}
	challenge, ok := mock.calls[1].body.(pairChallenge)
	if !ok {
		t.Fatalf("pair body = %T, want pairChallenge", mock.calls[1].body)
	}
	if challenge.PairingReqToken != 428043 {
		t.Errorf("PAIRING_REQ_TOKEN = %d, want 428043", challenge.PairingReqToken)
	}
	if challenge.ResponseValue != "4321" {
		t.Errorf("RESPONSE_VALUE = %q, want normalized 4321", challenge.ResponseValue)
	}
	if challenge.DeviceID != "test-client" {
		t.Errorf("DEVICE_ID = %q, want test-client", challenge.DeviceID)
	}
	if mock.calls[1].token != "" {
		t.Errorf("pairing request carried AUTH token %q", mock.calls[1].token)
	}
}

func TestBeginPairTwiceIsRejected(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			return parseBody(startBody)
		},
	}
	s := newTestSession(mock)

	if _, err := s.BeginPair(context.Background(), ""); err != nil {
		t.Fatalf("BeginPair() error = %v", err)
	}
	_, err := s.BeginPair(context.Background(), "")
	if !errors.Is(err, ErrPairInProgress) {
		t.Errorf("second BeginPair() error = %v, want ErrPairInProgress", err)
	}
	if len(mock.calls) != 1 {
		t.Errorf("dispatcher saw %d requests, want 1", len(mock.calls))
	}
}

func TestRePairFromPaired(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			return parseBody(startBody)
		},
	}
	s := ResumeAddr("192.0.2.10", 7345, "Zoldtoken", WithDispatcher(mock))

	if s.State() != Paired {
		t.Fatalf("state = %v, want Paired after resume", s.State())
	}
	if _, err := s.BeginPair(context.Background(), ""); err != nil {
		t.Fatalf("BeginPair() from Paired error = %v", err)
	}
	if s.State() != Pairing {
		t.Errorf("state = %v, want Pairing", s.State())
	}
	if s.Token() != "" {
		t.Errorf("Token() = %q, want cleared on re-pair", s.Token())
	}
}

func TestSubmitPINRejected(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			if call.path == "/pairing/start" {
				return parseBody(startBody)
			}
			return nil, &protocol.DeviceError{Code: protocol.CodeChallengeIncorrect}
		},
	}
	s := newTestSession(mock)

	if _, err := s.BeginPair(context.Background(), ""); err != nil {
		t.Fatalf("BeginPair() error = %v", err)
	}

	err := s.SubmitPIN(context.Background(), "0000")
	if !errors.Is(err, ErrPairRejected) {
		t.Errorf("SubmitPIN() error = %v, want ErrPairRejected", err)
	}
	if !protocol.IsPairingDenied(err) {
		t.Error("device cause lost from error chain")
	}
	if s.State() != Unpaired {
		t.Errorf("state = %v, want Unpaired after denial", s.State())
	}

	// The process id is dead: a retry must not reach the network
	before := len(mock.calls)
	if err := s.SubmitPIN(context.Background(), "0000"); !errors.Is(err, ErrNoPairing) {
		t.Errorf("retry error = %v, want ErrNoPairing", err)
	}
	if len(mock.calls) != before {
		t.Error("retry after denial sent a request")
	}
}

func TestSubmitPINTransportErrorKeepsPairing(t *testing.T) {
	fail := true
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			switch call.path {
			case "/pairing/start":
				return parseBody(startBody)
			case "/pairing/pair":
				if fail {
					return nil, &protocol.TransportError{Op: "send", Err: errors.New("connection reset")}
				}
				return parseBody(pairBody)
			}
			return nil, errors.New("unexpected path")
		},
	}
	s := newTestSession(mock)

	if _, err := s.BeginPair(context.Background(), ""); err != nil {
		t.Fatalf("BeginPair() error = %v", err)
	}

	if err := s.SubmitPIN(context.Background(), "1234"); !protocol.IsTransportError(err) {
		t.Fatalf("SubmitPIN() error = %v, want TransportError", err)
	}
	if s.State() != Pairing {
		t.Fatalf("state = %v, want Pairing kept after transport failure", s.State())
	}

	// Same process id works once the network recovers
	fail = false
	if err := s.SubmitPIN(context.Background(), "1234"); err != nil {
		t.Fatalf("SubmitPIN() retry error = %v", err)
	}
	if s.State() != Paired {
		t.Errorf("state = %v, want Paired", s.State())
	}
}

func TestCancelPair(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			if call.path == "/pairing/start" {
				return parseBody(startBody)
			}
			return parseBody(`{"STATUS":{"RESULT":"SUCCESS"}}`)
		},
	}
	s := newTestSession(mock)

	// No-op outside Pairing
	s.CancelPair(context.Background())
	if len(mock.calls) != 0 {
		t.Errorf("CancelPair() while unpaired sent %d requests, want 0", len(mock.calls))
	}

	if _, err := s.BeginPair(context.Background(), ""); err != nil {
		t.Fatalf("BeginPair() error = %v", err)
	}
	s.CancelPair(context.Background())
	if s.State() != Unpaired {
		t.Errorf("state = %v, want Unpaired after cancel", s.State())
	}
	if mock.calls[len(mock.calls)-1].path != "/pairing/cancel" {
		t.Errorf("last request = %s, want /pairing/cancel", mock.calls[len(mock.calls)-1].path)
	}
}

func TestCancelPairSwallowsNetworkFailure(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			if call.path == "/pairing/start" {
				return parseBody(startBody)
			}
			return nil, &protocol.TransportError{Op: "send", Err: errors.New("refused")}
		},
	}
	s := newTestSession(mock)

	if _, err := s.BeginPair(context.Background(), ""); err != nil {
		t.Fatalf("BeginPair() error = %v", err)
	}
	s.CancelPair(context.Background())
	if s.State() != Unpaired {
		t.Errorf("state = %v, want Unpaired even when the device is unreachable", s.State())
	}
}

func TestRevokedTokenUnpairsSession(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			return nil, &protocol.DeviceError{Code: protocol.CodeRequiresPairing}
		},
	}
	s := ResumeAddr("192.0.2.10", 7345, "Zrevoked", WithDispatcher(mock))

	err := s.Press(context.Background(), KeyVolumeUp)
	if !protocol.IsAuthError(err) {
		t.Fatalf("Press() error = %v, want auth DeviceError", err)
	}
	if s.State() != Unpaired {
		t.Errorf("state = %v, want Unpaired after token revocation", s.State())
	}
	if s.Token() != "" {
		t.Errorf("Token() = %q, want cleared", s.Token())
	}

	// Subsequent calls fail locally
	before := len(mock.calls)
	if err := s.Press(context.Background(), KeyVolumeUp); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("next Press() error = %v, want ErrNotAuthenticated", err)
	}
	if len(mock.calls) != before {
		t.Error("unpaired session still sent a request")
	}
}

func TestNonAuthDeviceErrorKeepsPairing(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			return nil, &protocol.DeviceError{Code: protocol.CodeBlocked}
		},
	}
	s := ResumeAddr("192.0.2.10", 7345, "Ztoken", WithDispatcher(mock))

	if err := s.Press(context.Background(), KeyVolumeUp); err == nil {
		t.Fatal("Press() error = nil, want DeviceError")
	}
	if s.State() != Paired {
		t.Errorf("state = %v, want Paired kept after non-auth rejection", s.State())
	}
}

func TestAuthenticatedRequestsCarryToken(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			return parseBody(`{"STATUS":{"RESULT":"SUCCESS"},"ITEMS":[{"CNAME":"x","VALUE":1}]}`)
		},
	}
	s := ResumeAddr("192.0.2.10", 7345, "Zsecret", WithDispatcher(mock))

	if _, err := s.PowerState(context.Background()); err != nil {
		t.Fatalf("PowerState() error = %v", err)
	}
	if got := mock.calls[0].token; got != "Zsecret" {
		t.Errorf("request token = %q, want Zsecret", got)
	}
}

func TestPowerStateWorksUnpaired(t *testing.T) {
	mock := &mockDispatcher{
		handler: func(call dispatchCall) (*protocol.Response, error) {
			return parseBody(`{"STATUS":{"RESULT":"SUCCESS"},"ITEMS":[{"CNAME":"power_mode","VALUE":1}]}`)
		},
	}
	s := newTestSession(mock)

	on, err := s.PowerState(context.Background())
	if err != nil {
		t.Fatalf("PowerState() error = %v", err)
	}
	if !on {
		t.Error("PowerState() = false, want true for VALUE 1")
	}
	if mock.calls[0].token != "" {
		t.Errorf("unpaired power query carried token %q", mock.calls[0].token)
	}
}

func TestNormalizePIN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234", "1234"},
		{" 1234 ", "1234"},
		{"12 34", "1234"},
		{"12-34", "1234"},
		{"1 2-3 4", "1234"},
	}
	for _, tt := range tests {
		if got := normalizePIN(tt.in); got != tt.want {
			t.Errorf("normalizePIN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if Unpaired.String() != "unpaired" || Pairing.String() != "pairing" || Paired.String() != "paired" {
		t.Error("State.String() names do not match")
	}
	if State(99).String() != "unknown" {
		t.Errorf("State(99).String() = %q, want unknown", State(99).String())
	}
}
