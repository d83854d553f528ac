// Package protocol implements the SmartCast control API dispatcher.
//
// The control API is HTTPS with JSON bodies on a device-specific port.
// Devices terminate TLS with self-issued certificates, so the dispatcher
// connects without certificate chain validation while keeping the transport
// encrypted. Every response carries a STATUS envelope:
//
//	{
//	    "STATUS": {"RESULT": "SUCCESS", "DETAIL": "Success"},
//	    "ITEM":  {...},   // single-object payloads (pairing)
//	    "ITEMS": [...]    // list payloads (settings, state)
//	}
//
// # Request Dispatch
//
// Client.Send turns a logical operation into a wire request uniformly for
// authenticated and unauthenticated calls: the pairing token is attached as
// the AUTH header only when the caller supplies one. Send never retries and
// never backs off; masking a failed request behind an automatic retry would
// hide pairing-state corruption from the session layer, so retry policy is
// strictly a caller concern.
//
// # Error Taxonomy
//
// Callers must react differently to the three failure classes, so they are
// distinct types:
//
//   - TransportError: connection, timeout, TLS, or cancellation failure.
//     Transient; the caller may retry. Cancelled is set when the caller's
//     context ended the request.
//   - ProtocolError: the response body does not have the expected shape.
//     Signals a firmware/client version mismatch; never retried.
//   - DeviceError: the device parsed the request and rejected it, with the
//     lowercase STATUS.RESULT as the code. Auth-invalid codes (see
//     IsAuthError) force the owning session back to the unpaired state;
//     pairing-denial codes (see IsPairingDenied) abort a pairing process.
//
// # Thread Safety
//
// Client is stateless apart from the pooled HTTP transport and is safe for
// concurrent use.
package protocol
