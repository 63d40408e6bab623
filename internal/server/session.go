package server

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/muurk/roastlink/internal/logging"
	"github.com/muurk/roastlink/internal/protocol"
	"go.uber.org/zap"
)

const (
	// handshakeTimeout bounds how long a client may take to deliver the
	// complete upgrade header block.
	handshakeTimeout = 5 * time.Second

	// readPoll is the per-read deadline inside the frame loop. Short
	// enough that a stop signal is noticed promptly.
	readPoll = 1 * time.Second

	// writeWait bounds any single outbound write.
	writeWait = 10 * time.Second
)

// SessionState tracks a session through its one-directional lifecycle.
type SessionState int

const (
	StateAwaitingHandshake SessionState = iota
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session owns one accepted transport connection: it drives the WebSocket
// handshake, then the read/decode/respond frame loop, and is discarded
// once the transport closes or a fatal decode error occurs. All failures
// are fatal to the session only, never to the server.
type Session struct {
	id         string
	conn       net.Conn
	remoteAddr string
	server     *Server
	state      SessionState
	buf        []byte
}

func newSession(conn net.Conn, server *Server) *Session {
	return &Session{
		id:         uuid.NewString(),
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		server:     server,
		state:      StateAwaitingHandshake,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	return s.state
}

// Run drives the session to completion. It returns once the session is
// closed; stop requests cooperative shutdown at the next read boundary.
func (s *Session) Run(stop <-chan struct{}) {
	defer s.close()

	logging.LogConnection(s.id, s.remoteAddr, "connection_accepted")

	if err := s.handshake(stop); err != nil {
		logging.LogHandshake(s.id, s.remoteAddr, false, err.Error())
		return
	}
	logging.LogHandshake(s.id, s.remoteAddr, true, "")

	s.frameLoop(stop)
}

// handshake accumulates the upgrade request, validates it, and writes the
// 101 response. Any failure leaves the session to be closed without a
// response.
func (s *Session) handshake(stop <-chan struct{}) error {
	deadline := time.Now().Add(handshakeTimeout)
	chunk := make([]byte, 1024)

	for !protocol.HasCompleteHeaderBlock(s.buf) {
		if stopped(stop) {
			return errors.New("server stopping")
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("handshake timeout after %s", handshakeTimeout)
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readPoll)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, err := s.conn.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return fmt.Errorf("transport error during handshake: %w", err)
		}
	}

	req, err := protocol.ParseUpgradeRequest(s.buf)
	if err != nil {
		return err
	}
	// Frame bytes may already trail the header block
	end := len(s.buf)
	if i := indexAfterHeaders(s.buf); i > 0 {
		s.buf = s.buf[i:end]
	} else {
		s.buf = nil
	}

	key := req.Key()
	if key == "" {
		return protocol.ErrMissingKey
	}

	if err := s.write(protocol.UpgradeResponse(protocol.AcceptKey(key))); err != nil {
		return err
	}

	s.state = StateActive
	return nil
}

// frameLoop reads, decodes, and dispatches frames until the session ends.
func (s *Session) frameLoop(stop <-chan struct{}) {
	chunk := make([]byte, 4096)

	for s.state == StateActive {
		if stopped(stop) {
			return
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readPoll)); err != nil {
			logging.Debug("Failed to set read deadline, connection likely closed",
				zap.String("session", s.id),
				zap.String("remote_addr", s.remoteAddr), zap.Error(err))
			return
		}
		n, err := s.conn.Read(chunk)
		if n > 0 {
			s.buf = append(s.buf, chunk[:n]...)
			if !s.drainFrames() {
				return
			}
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			logging.LogConnection(s.id, s.remoteAddr, "connection_closed_by_client")
			return
		}
	}
}

// drainFrames decodes every complete frame in the accumulator. Returns
// false when the session must end.
func (s *Session) drainFrames() bool {
	for {
		frame, n, err := protocol.Decode(s.buf)
		if errors.Is(err, protocol.ErrIncomplete) {
			return true
		}
		if errors.Is(err, protocol.ErrUnsupportedOpcode) {
			// Valid on the wire but not handled here; skip and continue
			logging.Warn("Skipping unsupported frame",
				zap.String("session", s.id),
				zap.String("remote_addr", s.remoteAddr),
				zap.Error(err),
			)
			s.buf = s.buf[n:]
			continue
		}
		if err != nil {
			// Malformed or oversized header: the byte stream can no
			// longer be trusted
			logging.Error("Fatal frame decode error",
				zap.String("session", s.id),
				zap.String("remote_addr", s.remoteAddr),
				zap.Error(err),
			)
			return false
		}

		s.buf = s.buf[n:]
		if !frame.Masked {
			// Tolerated, but it is a protocol violation by the client
			logging.Warn("Client frame was not masked",
				zap.String("session", s.id),
				zap.String("remote_addr", s.remoteAddr),
				zap.String("opcode", frame.OpcodeString()),
			)
		}
		if !s.dispatch(frame) {
			return false
		}
	}
}

// dispatch handles one decoded frame. Returns false when the session
// must end.
func (s *Session) dispatch(frame *protocol.Frame) bool {
	logging.LogFrame(s.id, s.remoteAddr, "received", frame.OpcodeString(), frame.Payload)

	switch frame.Opcode {
	case protocol.OpcodePing:
		return s.write(protocol.Encode(protocol.OpcodePong, frame.Payload)) == nil

	case protocol.OpcodePong:
		return true

	case protocol.OpcodeClose:
		s.state = StateClosing
		// Echo the close; a write failure here changes nothing, the
		// session is ending either way
		_ = s.write(protocol.Encode(protocol.OpcodeClose, nil))
		return false

	case protocol.OpcodeText:
		return s.answerRequest(frame.Payload)

	default:
		return true
	}
}

// answerRequest maps a request envelope to a response carrying the shared
// reading. Parse failures are non-fatal; transport failures end the
// session.
func (s *Session) answerRequest(payload []byte) bool {
	req, err := protocol.ParseRequest(payload)
	if err != nil {
		logging.Warn("Ignoring unparseable text frame",
			zap.String("session", s.id),
			zap.String("remote_addr", s.remoteAddr),
			zap.Error(err),
		)
		return true
	}

	var temp1 float64
	reading := s.server.LatestReading()
	if reading.Valid {
		temp1 = reading.ValueIn(s.server.Unit())
	}

	// temp1 is the bean temperature (input1 in Artisan); temp2 is
	// reserved for an environment sensor we do not have
	resp, err := protocol.BuildResponse(req.ID, temp1, 0)
	if err != nil {
		logging.Error("Failed to build response envelope",
			zap.String("session", s.id),
			zap.String("remote_addr", s.remoteAddr),
			zap.Error(err),
		)
		return true
	}

	logging.LogFrame(s.id, s.remoteAddr, "sent", "text", resp)
	return s.write(protocol.Encode(protocol.OpcodeText, resp)) == nil
}

// write sends raw bytes with a bounded deadline. Errors are logged and
// returned; callers treat them as session-fatal.
func (s *Session) write(data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if _, err := s.conn.Write(data); err != nil {
		logging.Error("Transport write failed",
			zap.String("session", s.id),
			zap.String("remote_addr", s.remoteAddr),
			zap.Error(err),
		)
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

func (s *Session) close() {
	s.state = StateClosed
	_ = s.conn.Close()
	logging.LogConnection(s.id, s.remoteAddr, "session_closed")
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// indexAfterHeaders returns the index just past the header terminator, or
// -1 when the block is incomplete.
func indexAfterHeaders(buf []byte) int {
	i := bytes.Index(buf, protocol.HeaderTerminator)
	if i < 0 {
		return -1
	}
	return i + len(protocol.HeaderTerminator)
}
