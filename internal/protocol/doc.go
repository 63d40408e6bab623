// Package protocol implements the WebSocket wire protocol used between the
// roastlink monitor and Artisan Scope.
//
// The implementation is deliberately from scratch rather than delegating to
// a WebSocket library: the monitor targets small embedded boards where the
// full net/http upgrade path is more machinery than the single-client,
// single-frame protocol needs, and where frame sizes must be bounded up
// front (see MaxPayloadSize).
//
// # Frames
//
// Decode parses RFC 6455 base framing from a byte accumulator:
//
//	frame, n, err := protocol.Decode(buf)
//	switch {
//	case errors.Is(err, protocol.ErrIncomplete):
//	    // read more bytes, try again
//	case err != nil:
//	    // malformed or unsupported frame
//	default:
//	    buf = buf[n:] // leftover bytes belong to the next frame
//	}
//
// Only single-frame messages are handled; continuation opcodes are
// rejected as unsupported. Encode produces unmasked server frames,
// EncodeMasked produces masked client frames for the probe tool and tests.
//
// # Handshake
//
// AcceptKey implements the SHA-1 + base64 accept-token transform and
// matches the RFC 6455 canonical test vector. ParseUpgradeRequest parses
// the client's header block by hand (the monitor never runs an HTTP
// server), and UpgradeResponse emits the fixed 101 response.
//
// # Envelope
//
// Text frames carry Artisan's JSON request/response envelope:
//
//	inbound:  {"id": 42}
//	outbound: {"id": 42, "data": {"temp1": 215.4, "temp2": 0}}
package protocol
