package device

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by authenticated operations invoked
	// before pairing completed. No network request is made.
	ErrNotAuthenticated = errors.New("session is not paired with the device")

	// ErrPairInProgress is returned by BeginPair while a pairing process
	// is already open. Finish it with SubmitPIN or drop it with CancelPair.
	ErrPairInProgress = errors.New("pairing is already in progress")

	// ErrNoPairing is returned by SubmitPIN when no pairing process is
	// open; a stale process id is never reused. No network request is made.
	ErrNoPairing = errors.New("no pairing in progress")

	// ErrPairRejected is returned by SubmitPIN when the device denies the
	// challenge (wrong PIN, expired process, too many attempts). The
	// session drops back to unpaired; restart from BeginPair.
	ErrPairRejected = errors.New("pairing rejected by device")
)

// InvalidValueError is returned by WriteSetting when the value fails the
// client-side check against the node's declared type and constraints.
// No network request is made.
type InvalidValueError struct {
	Setting string // node cname
	Reason  string
}

// Error implements the error interface
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for setting %q: %s", e.Setting, e.Reason)
}

// IsInvalidValue reports whether err is a client-side value check failure
func IsInvalidValue(err error) bool {
	var ive *InvalidValueError
	return errors.As(err, &ive)
}
