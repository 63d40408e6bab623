// Package server implements the WebSocket server that streams thermocouple
// readings to Artisan Scope.
//
// The server is intentionally small: a raw TCP listener, a hand-driven
// HTTP 101 upgrade, and manual RFC 6455 frame handling via the protocol
// package. It serves one client session at a time, since Artisan is a
// single consumer, and keeps exactly one shared "latest reading" value that the
// supervisor replaces each poll cycle.
//
// # Session Lifecycle
//
// Each accepted connection moves through a one-directional state machine:
//
//	AwaitingHandshake -> Active -> Closing -> Closed
//
// During Active, bytes accumulate in a session buffer and are decoded
// frame by frame; leftover bytes always belong to the next frame. Ping
// frames are answered with pongs, close frames are echoed, and text frames
// carrying Artisan's {"id": N} request envelope are answered with the
// latest reading.
//
// # Failure Isolation
//
// Transport or decode failures are fatal to the session only: the
// connection closes, control returns to the accept loop, and the next
// client is served. Only a listener failure or an explicit Shutdown ends
// the server.
//
// # Usage
//
//	srv, err := server.New(&server.Config{Host: "", Port: 8765, Unit: "C"})
//	if err != nil {
//	    return err
//	}
//	go srv.Start()
//	...
//	srv.PublishReading(reading)
//	...
//	srv.Shutdown()
package server
