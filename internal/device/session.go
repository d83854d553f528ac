package device

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calbright/smartcast/internal/discovery"
	"github.com/calbright/smartcast/internal/logging"
	"github.com/calbright/smartcast/internal/protocol"
)

// Dispatcher issues one control API request and interprets the response.
// protocol.Client is the production implementation; tests substitute mocks.
type Dispatcher interface {
	Send(ctx context.Context, method, path string, body any, token string) (*protocol.Response, error)
}

// State is the session's pairing state. A session is in exactly one state
// at any time; authenticated operations are only well-defined in Paired.
type State int

const (
	// Unpaired is the initial state; no credentials are held
	Unpaired State = iota
	// Pairing means a pairing process is open on the device and the
	// session is waiting for the on-screen PIN
	Pairing
	// Paired means the session holds a valid auth token
	Paired
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case Unpaired:
		return "unpaired"
	case Pairing:
		return "pairing"
	case Paired:
		return "paired"
	default:
		return "unknown"
	}
}

// defaultSettingsRoot is the settings tree root for TV-class devices;
// Info updates it from the device's own report (soundbars differ)
const defaultSettingsRoot = "tv_settings"

// Session is an authenticated connection to one SmartCast device.
//
// A session is the unit of authorization: every authenticated request
// carries exactly the token this session obtained by pairing. Sessions are
// explicit, independently owned values; there is no shared default session.
//
// Pairing transitions (BeginPair, SubmitPIN, CancelPair) are serialized
// internally; read-only authenticated operations may run concurrently once
// paired, each reusing a snapshot of the token.
type Session struct {
	dispatcher Dispatcher
	desc       *discovery.Descriptor // nil for bare-address sessions

	clientID   string
	clientName string

	mu           sync.RWMutex
	state        State
	reqToken     int    // pairing process id, valid in Pairing
	challenge    int    // challenge type from pairing start, valid in Pairing
	token        string // auth token, valid in Paired
	settingsRoot string
}

// Option configures a Session at construction time
type Option func(*Session)

// WithDispatcher substitutes the command dispatcher. Used by tests and by
// callers that need custom transport behavior.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Session) { s.dispatcher = d }
}

// WithClientIdentity sets the client id and name the device sees during
// pairing. The id must be stable across runs for the device to honor a
// previously issued token.
func WithClientIdentity(id, name string) Option {
	return func(s *Session) {
		s.clientID = id
		s.clientName = name
	}
}

// NewSession creates a session for a discovered device
func NewSession(desc *discovery.Descriptor, opts ...Option) *Session {
	s := newSession(desc.IP, desc.Port, opts...)
	s.desc = desc
	return s
}

// NewSessionAddr creates a session for a device at a known address,
// bypassing discovery
func NewSessionAddr(host string, port int, opts ...Option) *Session {
	return newSession(host, port, opts...)
}

func newSession(host string, port int, opts ...Option) *Session {
	s := &Session{
		state:        Unpaired,
		settingsRoot: defaultSettingsRoot,
		clientID:     "smartcast-go-" + uuid.NewString()[:8],
		clientName:   "smartcast-go",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dispatcher == nil {
		s.dispatcher = protocol.NewClient(host, port)
	}
	return s
}

// Resume restores a previously paired session from a caller-persisted
// token. The core never persists tokens itself; callers that saved one
// (see the CLI's registry) use Resume to skip re-pairing. The token is
// not verified here; the first authenticated call surfaces a DeviceError
// and drops the session back to Unpaired if the device revoked it.
func Resume(desc *discovery.Descriptor, token string, opts ...Option) *Session {
	s := NewSession(desc, opts...)
	s.state = Paired
	s.token = token
	return s
}

// ResumeAddr is Resume for a bare address
func ResumeAddr(host string, port int, token string, opts ...Option) *Session {
	s := NewSessionAddr(host, port, opts...)
	s.state = Paired
	s.token = token
	return s
}

// Descriptor returns the device descriptor the session was built from,
// or nil for bare-address sessions
func (s *Session) Descriptor() *discovery.Descriptor {
	return s.desc
}

// State returns the current pairing state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the auth token, or "" when not paired. Callers that want
// to persist the token across runs read it here after pairing succeeds.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ClientID returns the client identifier used during pairing
func (s *Session) ClientID() string {
	return s.clientID
}

// authToken returns a snapshot of the token for an authenticated request,
// or ErrNotAuthenticated without any network traffic
func (s *Session) authToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Paired {
		return "", ErrNotAuthenticated
	}
	return s.token, nil
}

// optionalToken returns the token when paired, "" otherwise. Used by
// operations the device serves both authenticated and unauthenticated.
func (s *Session) optionalToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Paired {
		return ""
	}
	return s.token
}

// checkAuth inspects an error from an authenticated call. An auth-invalid
// device rejection means the token was revoked: the session drops back to
// Unpaired as a side effect of surfacing the error, so the caller's next
// legal action is BeginPair.
func (s *Session) checkAuth(err error) error {
	if err == nil || !protocol.IsAuthError(err) {
		return err
	}

	s.mu.Lock()
	if s.state == Paired {
		logging.Warn("device revoked auth token, session unpaired",
			zap.String("client_id", s.clientID),
		)
		s.state = Unpaired
		s.token = ""
	}
	s.mu.Unlock()

	return err
}
