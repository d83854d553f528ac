// Package device implements authenticated sessions against SmartCast
// devices: the pairing state machine and the operations built on it.
//
// # Pairing State Machine
//
// A Session is in exactly one of three states:
//
//	Unpaired --BeginPair--> Pairing --SubmitPIN--> Paired
//
// with an error path back to Unpaired from any state on protocol failure.
// Pairing is an interactive, device-confirmed handshake: the device shows
// a PIN on its physical screen, so the flow is an explicit two-call
// protocol rather than a single blocking call, and the caller may take
// arbitrary time between BeginPair and SubmitPIN.
//
//	sess := device.NewSession(desc)
//	needsPIN, err := sess.BeginPair(ctx, "My Remote App")
//	// ... user reads the PIN off the screen ...
//	err = sess.SubmitPIN(ctx, pin)
//	token := sess.Token() // persist if desired; see Resume
//
// A rejected PIN (ErrPairRejected) discards the pairing process; restart
// from BeginPair. CancelPair abandons an open process best-effort.
//
// # Authenticated Operations
//
// ReadSettings, WriteSetting, SendKey, Info, and the input operations
// require the Paired state and fail immediately with ErrNotAuthenticated
// otherwise, without any network traffic. No implicit pairing is ever
// attempted. A device rejection with an auth-invalid code drops the
// session back to Unpaired as a side effect of surfacing the error.
//
// WriteSetting validates values client-side against the node's declared
// kind (slider range, list membership, read-only flag) and returns
// InvalidValueError before any request when the check fails.
//
// # Concurrency
//
// Pairing transitions are serialized internally; the state machine is not
// idempotent under interleaving. Read-only operations may run concurrently
// once paired, each using a snapshot of the token. State transitions
// commit only after a fully parsed device response, so a cancelled call
// never leaves partial pairing state behind.
//
// # Token Persistence
//
// The package never persists tokens. Callers that save Token externally
// restore sessions with Resume; a revoked token surfaces on the first
// authenticated call and unpairs the session.
package device
