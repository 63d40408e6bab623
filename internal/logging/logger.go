package logging

import (
	"encoding/hex"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "ROASTLINK_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks ROASTLINK_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	// If no level provided, check environment variable
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	// If still no level, use silent mode (nop logger)
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		// Unknown level - use info as default when explicitly set to something
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	// Customize encoder for better readability
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// InitializeFromEnv initializes the logger from the ROASTLINK_LOG_LEVEL
// environment variable. This is the recommended way to initialize logging
// for CLI commands that want silent mode by default.
func InitializeFromEnv() error {
	return Initialize("")
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback to silent logger if not initialized
		// This ensures no unexpected log output in CLI commands
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogConnection logs a connection lifecycle event
func LogConnection(sessionID string, remoteAddr string, event string) {
	Info("Connection event",
		zap.String("session", sessionID),
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogHandshake logs the result of a WebSocket opening handshake
func LogHandshake(sessionID string, remoteAddr string, accepted bool, reason string) {
	fields := []zap.Field{
		zap.String("session", sessionID),
		zap.String("remote_addr", remoteAddr),
		zap.Bool("accepted", accepted),
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	Info("WebSocket handshake", fields...)
}

// LogFrame logs a WebSocket frame at debug level with a bounded hex dump
func LogFrame(sessionID string, remoteAddr string, direction string, opcode string, payload []byte) {
	Debug("WebSocket frame",
		zap.String("session", sessionID),
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.String("opcode", opcode),
		zap.Int("length", len(payload)),
		zap.String("hex", hexDump(payload)),
	)
}

// LogReading logs a published temperature reading
func LogReading(celsius float64, fahrenheit float64, valid bool) {
	Debug("Temperature reading",
		zap.Float64("celsius", celsius),
		zap.Float64("fahrenheit", fahrenheit),
		zap.Bool("valid", valid),
	)
}

// LogRawBytes logs raw bytes (useful for debugging protocol issues)
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		// Ignore sync errors - stdout/stderr sync often fails harmlessly
		_ = logger.Sync()
	}
}

// Helper functions

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	// Limit to first 256 bytes for logging
	if len(data) > 256 {
		return hex.EncodeToString(data[:256]) + "..."
	}
	return hex.EncodeToString(data)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	// Limit to first 256 bytes
	if len(data) > 256 {
		data = data[:256]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}
