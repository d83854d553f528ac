package device

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/calbright/smartcast/internal/logging"
	"github.com/calbright/smartcast/internal/protocol"
)

// challengePIN is the challenge type for devices that display a PIN;
// devices without a display auto-approve with challenge type 0
const challengePIN = 1

// pairRequest is the body of pairing start and cancel requests
type pairRequest struct {
	DeviceName string `json:"DEVICE_NAME"`
	DeviceID   string `json:"DEVICE_ID"`
}

// pairChallenge is the body of the pairing completion request
type pairChallenge struct {
	DeviceID        string `json:"DEVICE_ID"`
	ChallengeType   int    `json:"CHALLENGE_TYPE"`
	ResponseValue   string `json:"RESPONSE_VALUE"`
	PairingReqToken int    `json:"PAIRING_REQ_TOKEN"`
}

// BeginPair starts the interactive pairing handshake.
//
// The device enters pairing mode and, when it has a display, shows a PIN
// to be entered via SubmitPIN. needsPIN reports whether the device expects
// one; displayless devices auto-approve and SubmitPIN may be called with
// an empty PIN. clientName is the name shown in the device's paired-client
// list; when empty the session's configured name is used.
//
// Pairing is a two-call interactive protocol: a human has to read the PIN
// off the device's screen, so BeginPair never blocks waiting for approval
// and the caller may take arbitrary time before SubmitPIN.
//
// Returns ErrPairInProgress when a pairing process is already open.
// Allowed from Paired: re-pairing revokes the held token on completion.
func (s *Session) BeginPair(ctx context.Context, clientName string) (needsPIN bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Pairing {
		return false, ErrPairInProgress
	}
	if clientName == "" {
		clientName = s.clientName
	}

	resp, err := s.dispatcher.Send(ctx, http.MethodPut, "/pairing/start", pairRequest{
		DeviceName: clientName,
		DeviceID:   s.clientID,
	}, "")
	if err != nil {
		return false, err
	}

	reqToken, challenge, err := resp.PairingInfo()
	if err != nil {
		return false, err
	}

	// Commit the transition only after a fully parsed response
	s.state = Pairing
	s.reqToken = reqToken
	s.challenge = challenge
	s.token = ""

	logging.Info("pairing started",
		zap.String("client_id", s.clientID),
		zap.Int("challenge_type", challenge),
	)

	return challenge == challengePIN, nil
}

// SubmitPIN completes the pairing handshake with the PIN displayed on the
// device. On success the session transitions to Paired and Token returns
// the issued credential.
//
// A device denial (wrong PIN, expired process, too many attempts) returns
// ErrPairRejected and drops the session back to Unpaired; the process id is
// discarded and the caller must restart from BeginPair. Transport failures
// leave the open pairing process intact so the caller may retry SubmitPIN.
//
// Returns ErrNoPairing, with no request sent, when no pairing is open.
func (s *Session) SubmitPIN(ctx context.Context, pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Pairing {
		return ErrNoPairing
	}

	resp, err := s.dispatcher.Send(ctx, http.MethodPut, "/pairing/pair", pairChallenge{
		DeviceID:        s.clientID,
		ChallengeType:   s.challenge,
		ResponseValue:   normalizePIN(pin),
		PairingReqToken: s.reqToken,
	}, "")
	if err != nil {
		if protocol.IsTransportError(err) {
			// Transient; the pairing process is still open on the device
			return err
		}
		// The device rejected the challenge or answered with an
		// unexpected shape; either way the process id is dead
		s.resetLocked()
		if protocol.IsPairingDenied(err) {
			return fmt.Errorf("%w: %w", ErrPairRejected, err)
		}
		return err
	}

	token, err := resp.AuthToken()
	if err != nil {
		s.resetLocked()
		return err
	}

	s.state = Paired
	s.token = token
	s.reqToken = 0
	s.challenge = 0

	logging.Info("pairing complete", zap.String("client_id", s.clientID))

	return nil
}

// CancelPair abandons an open pairing process.
//
// The device is notified best-effort; a network failure during cancel is
// logged, not surfaced, since cancellation is advisory cleanup. The session
// is Unpaired when CancelPair returns, unconditionally. Calling it with no
// pairing open is a no-op.
func (s *Session) CancelPair(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Pairing {
		return
	}

	_, err := s.dispatcher.Send(ctx, http.MethodPut, "/pairing/cancel", pairRequest{
		DeviceName: s.clientName,
		DeviceID:   s.clientID,
	}, "")
	if err != nil {
		logging.Warn("pairing cancel not acknowledged by device", zap.Error(err))
	}

	s.resetLocked()
}

// resetLocked drops all pairing state. Caller holds s.mu.
func (s *Session) resetLocked() {
	s.state = Unpaired
	s.reqToken = 0
	s.challenge = 0
	s.token = ""
}

// normalizePIN strips the separators people copy off the screen
func normalizePIN(pin string) string {
	pin = strings.TrimSpace(pin)
	pin = strings.ReplaceAll(pin, " ", "")
	return strings.ReplaceAll(pin, "-", "")
}
