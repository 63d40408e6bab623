package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/muurk/roastlink/internal/protocol"
	"github.com/muurk/roastlink/internal/sensor"
)

const testUpgradeRequest = "GET / HTTP/1.1\r\n" +
	"Host: roastlink.local\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n" +
	"\r\n"

var testMaskKey = [4]byte{0x11, 0x22, 0x33, 0x44}

// testSession wires a session to an in-memory transport
type testSession struct {
	client net.Conn
	sess   *Session
	done   chan struct{}
	stop   chan struct{}
}

func newTestSession(t *testing.T, srv *Server) *testSession {
	t.Helper()
	client, server := net.Pipe()
	ts := &testSession{
		client: client,
		sess:   newSession(server, srv),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go func() {
		ts.sess.Run(ts.stop)
		close(ts.done)
	}()
	t.Cleanup(func() {
		close(ts.stop)
		_ = client.Close()
		select {
		case <-ts.done:
		case <-time.After(5 * time.Second):
			t.Error("session did not terminate")
		}
	})
	return ts
}

func (ts *testSession) handshake(t *testing.T) {
	t.Helper()
	ts.mustWrite(t, []byte(testUpgradeRequest))
	resp := ts.readUntil(t, []byte("\r\n\r\n"))
	if !bytes.Contains(resp, []byte("101 Switching Protocols")) {
		t.Fatalf("handshake response = %q", resp)
	}
	if !bytes.Contains(resp, []byte("Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")) {
		t.Fatalf("handshake response missing accept key: %q", resp)
	}
}

func (ts *testSession) mustWrite(t *testing.T, data []byte) {
	t.Helper()
	_ = ts.client.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := ts.client.Write(data); err != nil {
		t.Fatalf("client write failed: %v", err)
	}
}

func (ts *testSession) readUntil(t *testing.T, sep []byte) []byte {
	t.Helper()
	_ = ts.client.SetReadDeadline(time.Now().Add(5 * time.Second))
	var buf []byte
	chunk := make([]byte, 1024)
	for !bytes.Contains(buf, sep) {
		n, err := ts.client.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			t.Fatalf("client read failed: %v (got %q)", err, buf)
		}
	}
	return buf
}

// readFrame reads one complete frame from the client side
func (ts *testSession) readFrame(t *testing.T) *protocol.Frame {
	t.Helper()
	_ = ts.client.SetReadDeadline(time.Now().Add(5 * time.Second))
	var buf []byte
	chunk := make([]byte, 1024)
	for {
		frame, _, err := protocol.Decode(buf)
		if err == nil {
			return frame
		}
		if !errors.Is(err, protocol.ErrIncomplete) {
			t.Fatalf("client decode failed: %v", err)
		}
		n, err := ts.client.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			t.Fatalf("client read failed: %v", err)
		}
	}
}

func newTestServer(t *testing.T, unit string) *Server {
	t.Helper()
	srv, err := New(&Config{Unit: unit})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func TestSessionIDsAssignedAndDistinct(t *testing.T) {
	srv := newTestServer(t, "C")

	a := newTestSession(t, srv)
	b := newTestSession(t, srv)

	if a.sess.id == "" || b.sess.id == "" {
		t.Fatal("session created without an id")
	}
	if a.sess.id == b.sess.id {
		t.Errorf("two sessions share id %q", a.sess.id)
	}
}

func TestSessionHandshakeAndRequest(t *testing.T) {
	srv := newTestServer(t, "C")
	srv.PublishReading(sensor.NewReading(215.5))

	ts := newTestSession(t, srv)
	ts.handshake(t)

	ts.mustWrite(t, protocol.EncodeMasked(protocol.OpcodeText, []byte(`{"id":7}`), testMaskKey))
	frame := ts.readFrame(t)
	if frame.Opcode != protocol.OpcodeText {
		t.Fatalf("opcode = %s, want text", frame.OpcodeString())
	}

	var resp protocol.Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatalf("response payload not JSON: %v", err)
	}
	if resp.ID != 7 {
		t.Errorf("id = %d, want 7", resp.ID)
	}
	if resp.Data.Temp1 != 215.5 {
		t.Errorf("temp1 = %v, want 215.5", resp.Data.Temp1)
	}
	if resp.Data.Temp2 != 0 {
		t.Errorf("temp2 = %v, want 0", resp.Data.Temp2)
	}
}

func TestSessionFahrenheitUnit(t *testing.T) {
	srv := newTestServer(t, "F")
	srv.PublishReading(sensor.NewReading(100))

	ts := newTestSession(t, srv)
	ts.handshake(t)

	ts.mustWrite(t, protocol.EncodeMasked(protocol.OpcodeText, []byte(`{"id":1}`), testMaskKey))
	frame := ts.readFrame(t)

	var resp protocol.Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatalf("response payload not JSON: %v", err)
	}
	if resp.Data.Temp1 != 212 {
		t.Errorf("temp1 = %v, want 212 (°F)", resp.Data.Temp1)
	}
}

func TestSessionInvalidReadingReportsZero(t *testing.T) {
	srv := newTestServer(t, "C")
	srv.PublishReading(sensor.NewReading(9999)) // out of plausible range

	ts := newTestSession(t, srv)
	ts.handshake(t)

	ts.mustWrite(t, protocol.EncodeMasked(protocol.OpcodeText, []byte(`{"id":2}`), testMaskKey))
	frame := ts.readFrame(t)

	var resp protocol.Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatalf("response payload not JSON: %v", err)
	}
	if resp.Data.Temp1 != 0 {
		t.Errorf("temp1 = %v, want 0 for invalid reading", resp.Data.Temp1)
	}
}

func TestSessionPingPong(t *testing.T) {
	srv := newTestServer(t, "C")
	ts := newTestSession(t, srv)
	ts.handshake(t)

	ts.mustWrite(t, protocol.EncodeMasked(protocol.OpcodePing, []byte("keepalive"), testMaskKey))
	frame := ts.readFrame(t)
	if frame.Opcode != protocol.OpcodePong {
		t.Fatalf("opcode = %s, want pong", frame.OpcodeString())
	}
	if !bytes.Equal(frame.Payload, []byte("keepalive")) {
		t.Errorf("pong payload = %q, want ping payload echoed", frame.Payload)
	}
}

func TestSessionCloseEchoed(t *testing.T) {
	srv := newTestServer(t, "C")
	ts := newTestSession(t, srv)
	ts.handshake(t)

	ts.mustWrite(t, protocol.EncodeMasked(protocol.OpcodeClose, nil, testMaskKey))
	frame := ts.readFrame(t)
	if frame.Opcode != protocol.OpcodeClose {
		t.Fatalf("opcode = %s, want close", frame.OpcodeString())
	}

	select {
	case <-ts.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close after close frame")
	}
	if ts.sess.State() != StateClosed {
		t.Errorf("state = %v, want closed", ts.sess.State())
	}
}

func TestSessionMissingKeyClosesWithoutResponse(t *testing.T) {
	srv := newTestServer(t, "C")
	ts := newTestSession(t, srv)

	ts.mustWrite(t, []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))

	select {
	case <-ts.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close on missing key")
	}

	// No response bytes were sent
	_ = ts.client.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 1)
	if n, err := ts.client.Read(buf); err == nil || n > 0 {
		t.Errorf("expected no handshake response, read %d bytes", n)
	}
}

func TestSessionOversizedFrameIsFatal(t *testing.T) {
	srv := newTestServer(t, "C")
	ts := newTestSession(t, srv)
	ts.handshake(t)

	// 64-bit length tier declaring far more than MaxPayloadSize
	ts.mustWrite(t, []byte{0x81, 0xFF, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0xAA, 0xBB, 0xCC, 0xDD})

	select {
	case <-ts.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close on oversized frame")
	}
}

func TestSessionSkipsUnsupportedFrames(t *testing.T) {
	srv := newTestServer(t, "C")
	srv.PublishReading(sensor.NewReading(100))
	ts := newTestSession(t, srv)
	ts.handshake(t)

	// A binary frame is not handled but must not end the session
	msg := append(
		protocol.EncodeMasked(protocol.OpcodeBinary, []byte{0xDE, 0xAD}, testMaskKey),
		protocol.EncodeMasked(protocol.OpcodeText, []byte(`{"id":9}`), testMaskKey)...,
	)
	ts.mustWrite(t, msg)

	frame := ts.readFrame(t)
	var resp protocol.Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatalf("response payload not JSON: %v", err)
	}
	if resp.ID != 9 {
		t.Errorf("id = %d, want 9 (session survived unsupported frame)", resp.ID)
	}
}

func TestSessionUnmaskedFrameTolerated(t *testing.T) {
	srv := newTestServer(t, "C")
	srv.PublishReading(sensor.NewReading(100))
	ts := newTestSession(t, srv)
	ts.handshake(t)

	// Unmasked client frame: a violation, but decoded anyway
	ts.mustWrite(t, protocol.Encode(protocol.OpcodeText, []byte(`{"id":4}`)))
	frame := ts.readFrame(t)
	var resp protocol.Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatalf("response payload not JSON: %v", err)
	}
	if resp.ID != 4 {
		t.Errorf("id = %d, want 4", resp.ID)
	}
}

func TestSessionFragmentedDelivery(t *testing.T) {
	// A frame split across many reads must still decode once complete
	srv := newTestServer(t, "C")
	srv.PublishReading(sensor.NewReading(150))
	ts := newTestSession(t, srv)
	ts.handshake(t)

	full := protocol.EncodeMasked(protocol.OpcodeText, []byte(`{"id":11}`), testMaskKey)
	for _, b := range full {
		ts.mustWrite(t, []byte{b})
	}

	frame := ts.readFrame(t)
	var resp protocol.Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatalf("response payload not JSON: %v", err)
	}
	if resp.ID != 11 {
		t.Errorf("id = %d, want 11", resp.ID)
	}
}

func TestSessionIsolation(t *testing.T) {
	// A fatal frame on one session must not affect another session
	// sharing the same server
	srv := newTestServer(t, "C")
	srv.PublishReading(sensor.NewReading(180))

	victim := newTestSession(t, srv)
	victim.handshake(t)
	survivor := newTestSession(t, srv)
	survivor.handshake(t)

	// Kill the victim with an oversized declaration
	victim.mustWrite(t, []byte{0x81, 0x7F, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00})
	select {
	case <-victim.done:
	case <-time.After(5 * time.Second):
		t.Fatal("victim session did not close")
	}

	// Survivor still answers
	survivor.mustWrite(t, protocol.EncodeMasked(protocol.OpcodeText, []byte(`{"id":3}`), testMaskKey))
	frame := survivor.readFrame(t)
	var resp protocol.Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		t.Fatalf("response payload not JSON: %v", err)
	}
	if resp.ID != 3 || resp.Data.Temp1 != 180 {
		t.Errorf("survivor response = %+v, want id 3 temp1 180", resp)
	}
}

func TestReadingVisibility(t *testing.T) {
	// Once PublishReading returns, responses must carry exactly that
	// reading, never a stale one
	srv := newTestServer(t, "C")
	ts := newTestSession(t, srv)
	ts.handshake(t)

	for i, temp := range []float64{100, 150, 200.5} {
		srv.PublishReading(sensor.NewReading(temp))
		ts.mustWrite(t, protocol.EncodeMasked(protocol.OpcodeText, []byte(`{"id":1}`), testMaskKey))
		frame := ts.readFrame(t)
		var resp protocol.Response
		if err := json.Unmarshal(frame.Payload, &resp); err != nil {
			t.Fatalf("response payload not JSON: %v", err)
		}
		if resp.Data.Temp1 != temp {
			t.Errorf("request %d: temp1 = %v, want %v", i, resp.Data.Temp1, temp)
		}
	}
}

func TestSessionTransportErrorIsFatal(t *testing.T) {
	srv := newTestServer(t, "C")
	ts := newTestSession(t, srv)
	ts.handshake(t)

	_ = ts.client.Close()
	select {
	case <-ts.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close after transport error")
	}
}
