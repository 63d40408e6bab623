// Package logging provides structured logging for the roastlink daemon.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the monitor. It provides both general logging
// functions and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, frame parsing, ping/pong)
//   - Info: Normal operations (connections, readings, state changes)
//   - Warn: Non-fatal issues (output failures, retries)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Client connected",
//	    zap.String("remote_addr", "192.168.1.100"),
//	    zap.String("session_id", sessionID),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
//	logging.LogConnection(sessionID, remoteAddr, "connection_accepted")
//	logging.LogHandshake(sessionID, remoteAddr, true, "")
//	logging.LogFrame(sessionID, remoteAddr, "received", "text", payload)
//	logging.LogReading(215.4, 419.7, true)
//
// # Configuration
//
// Initialize logging at daemon startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given, the ROASTLINK_LOG_LEVEL environment variable is
// consulted; if that is also unset the logger is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
