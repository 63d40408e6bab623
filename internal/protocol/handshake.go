package protocol

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MagicGUID is the fixed RFC 6455 key suffix used to compute the
// Sec-WebSocket-Accept value.
const MagicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// HeaderTerminator ends the HTTP upgrade request's header block.
var HeaderTerminator = []byte("\r\n\r\n")

var (
	// ErrMissingKey means the upgrade request carried no Sec-WebSocket-Key.
	ErrMissingKey = errors.New("missing Sec-WebSocket-Key header")

	// ErrBadRequest means the header block could not be parsed at all.
	ErrBadRequest = errors.New("malformed upgrade request")
)

// UpgradeRequest is a parsed WebSocket opening handshake. Headers are
// stored with lowercased names; the request line is kept for logging.
type UpgradeRequest struct {
	RequestLine string
	Headers     map[string]string
}

// Header returns a header value by case-insensitive name.
func (r *UpgradeRequest) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// Key returns the client's Sec-WebSocket-Key value.
func (r *UpgradeRequest) Key() string {
	return r.Header("Sec-WebSocket-Key")
}

// AcceptKey computes the Sec-WebSocket-Accept token for a client key:
// SHA-1 over the key concatenated with the magic GUID, base64 encoded.
func AcceptKey(clientKey string) string {
	digest := sha1.Sum([]byte(clientKey + MagicGUID))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// ParseUpgradeRequest parses a blank-line-terminated HTTP header block.
// The block must contain the terminator; callers accumulate bytes until
// HasCompleteHeaderBlock reports true before calling this.
func ParseUpgradeRequest(block []byte) (*UpgradeRequest, error) {
	end := bytes.Index(block, HeaderTerminator)
	if end < 0 {
		return nil, fmt.Errorf("%w: no header terminator", ErrBadRequest)
	}

	lines := strings.Split(string(block[:end]), "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, fmt.Errorf("%w: empty request line", ErrBadRequest)
	}

	req := &UpgradeRequest{
		RequestLine: lines[0],
		Headers:     make(map[string]string, len(lines)-1),
	}

	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			// Tolerate stray lines rather than failing the handshake
			continue
		}
		req.Headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	return req, nil
}

// HasCompleteHeaderBlock reports whether buf contains a full header block.
func HasCompleteHeaderBlock(buf []byte) bool {
	return bytes.Contains(buf, HeaderTerminator)
}

// UpgradeResponse builds the fixed 101 Switching Protocols response for a
// computed accept key. Artisan validates the Sec-WebSocket-Accept value,
// so unlike a plain logging bridge the header must be present and exact.
func UpgradeResponse(acceptKey string) []byte {
	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + acceptKey + "\r\n" +
		"\r\n"
	return []byte(response)
}
