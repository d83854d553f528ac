package protocol

import (
	"context"
	"errors"
	"fmt"
)

// Device result codes returned in the STATUS.RESULT field of control API
// responses, normalized to lower case. The set follows the codes observed
// on real firmware; unknown codes are surfaced verbatim.
const (
	CodeInvalidParameter      = "invalid_parameter"
	CodeURINotFound           = "uri_not_found"
	CodeMaxChallengesExceeded = "max_challenges_exceeded"
	CodePairingDenied         = "pairing_denied"
	CodeValueOutOfRange       = "value_out_of_range"
	CodeChallengeIncorrect    = "challenge_incorrect"
	CodeBlocked               = "blocked"
	CodeFailure               = "failure"
	CodeAborted               = "aborted"
	CodeBusy                  = "busy"
	CodeRequiresPairing       = "requires_pairing"
	CodeRequiresSystemPin     = "requires_system_pin"
)

// TransportError indicates a network-level failure: connection refused or
// reset, timeout, TLS failure, or caller cancellation. Transport errors are
// transient; callers may retry. The dispatcher itself never retries.
type TransportError struct {
	Op        string // "send", "read"
	Err       error
	Cancelled bool // request aborted by caller cancellation or deadline
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Cancelled {
		return fmt.Sprintf("transport: %s cancelled: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates a response that does not match the expected
// shape: unparseable JSON, a missing STATUS envelope, or a payload field
// of the wrong type. Protocol errors signal a firmware/client version
// mismatch and are never retryable.
type ProtocolError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("protocol: %s", e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// DeviceError indicates the device understood the request and explicitly
// rejected it. Code is the lowercase STATUS.RESULT value, or "http_NNN"
// when the device returned a bare non-success HTTP status.
type DeviceError struct {
	Code       string
	Detail     string
	StatusCode int // HTTP status of the response, when known
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("device rejected request: %s (%s)", e.Code, e.Detail)
	}
	return fmt.Sprintf("device rejected request: %s", e.Code)
}

// IsTransportError reports whether err is a network-level failure
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsCancelled reports whether err is a transport failure caused by caller
// cancellation or deadline expiry
func IsCancelled(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Cancelled
}

// IsProtocolError reports whether err is a response-shape mismatch
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsAuthError reports whether err is a device rejection that invalidates
// the session's pairing: the token was revoked or never valid. Sessions
// react by dropping back to the unpaired state.
func IsAuthError(err error) bool {
	var de *DeviceError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Code {
	case CodeRequiresPairing, "http_401", "http_403":
		return true
	}
	return false
}

// IsPairingDenied reports whether err is a device rejection of a pairing
// challenge: wrong PIN, expired pairing process, or too many attempts.
func IsPairingDenied(err error) bool {
	var de *DeviceError
	if !errors.As(err, &de) {
		return false
	}
	switch de.Code {
	case CodePairingDenied, CodeChallengeIncorrect, CodeMaxChallengesExceeded, CodeValueOutOfRange:
		return true
	}
	return false
}

// classifyTransport wraps a request error as a TransportError, marking it
// cancelled when the caller's context ended the request
func classifyTransport(ctx context.Context, op string, err error) *TransportError {
	cancelled := ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
	return &TransportError{Op: op, Err: err, Cancelled: cancelled}
}
