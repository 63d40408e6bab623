package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// WebSocket frame opcodes
const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA
)

// MaxPayloadSize bounds the payload a single frame may declare. Frames
// beyond this are rejected before any allocation happens, which keeps a
// misbehaving client from forcing a huge buffer on a small device.
const MaxPayloadSize = 128 * 1024

var (
	// ErrIncomplete means the buffer does not yet hold a whole frame.
	// It is a retry signal, not a failure: accumulate more bytes and
	// call Decode again.
	ErrIncomplete = errors.New("incomplete frame")

	// ErrTooLarge means the frame header declares a payload larger than
	// MaxPayloadSize.
	ErrTooLarge = errors.New("frame payload exceeds maximum size")

	// ErrUnsupportedOpcode means the opcode is valid on the wire but not
	// handled by this engine (continuation/fragmented frames included).
	ErrUnsupportedOpcode = errors.New("unsupported opcode")
)

// Frame represents a single complete WebSocket frame
type Frame struct {
	FIN     bool
	Opcode  byte
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

// Decode parses one frame from the front of buf.
//
// It returns the parsed frame and the number of bytes consumed. Callers
// keep an accumulator: on success, drop the consumed bytes from the front
// (leftover bytes belong to the next frame); on ErrIncomplete, read more
// and retry. ErrUnsupportedOpcode still reports the consumed byte count so
// callers can skip the offending frame and keep the session alive;
// ErrTooLarge does not, because the declared length cannot be trusted.
// Decode never fabricates a frame from partial data.
//
// Client-to-server frames must be masked per RFC 6455, but some embedded
// clients skip masking; unmasked frames are decoded anyway and the Masked
// field lets callers log the violation.
func Decode(buf []byte) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}

	frame := &Frame{}
	frame.FIN = (buf[0] & 0x80) != 0
	frame.Opcode = buf[0] & 0x0F
	frame.Masked = (buf[1] & 0x80) != 0

	payloadLen := uint64(buf[1] & 0x7F)
	offset := 2

	// Extended payload length tiers
	if payloadLen == 126 {
		if len(buf) < offset+2 {
			return nil, 0, ErrIncomplete
		}
		payloadLen = uint64(binary.BigEndian.Uint16(buf[offset : offset+2]))
		offset += 2
	} else if payloadLen == 127 {
		if len(buf) < offset+8 {
			return nil, 0, ErrIncomplete
		}
		payloadLen = binary.BigEndian.Uint64(buf[offset : offset+8])
		offset += 8
	}

	if payloadLen > MaxPayloadSize {
		return nil, 0, fmt.Errorf("%w: %d bytes declared, max %d", ErrTooLarge, payloadLen, MaxPayloadSize)
	}

	if frame.Masked {
		if len(buf) < offset+4 {
			return nil, 0, ErrIncomplete
		}
		copy(frame.MaskKey[:], buf[offset:offset+4])
		offset += 4
	}

	total := offset + int(payloadLen)
	if len(buf) < total {
		return nil, 0, ErrIncomplete
	}

	switch frame.Opcode {
	case OpcodeText, OpcodeClose, OpcodePing, OpcodePong:
	default:
		return nil, total, fmt.Errorf("%w: 0x%X", ErrUnsupportedOpcode, frame.Opcode)
	}

	if payloadLen > 0 {
		payload := buf[offset:total]
		if frame.Masked {
			frame.Payload = MaskPayload(payload, frame.MaskKey)
		} else {
			frame.Payload = append([]byte(nil), payload...)
		}
	}

	return frame, total, nil
}

// Encode builds a server-to-client frame: FIN set, unmasked, with the
// length tier chosen by payload size. Payloads larger than MaxPayloadSize
// are a caller contract violation.
func Encode(opcode byte, payload []byte) []byte {
	frame := make([]byte, 0, 10+len(payload))
	frame = append(frame, 0x80|opcode)

	payloadLen := len(payload)
	switch {
	case payloadLen < 126:
		frame = append(frame, byte(payloadLen))
	case payloadLen < 65536:
		frame = append(frame, 126)
		frame = binary.BigEndian.AppendUint16(frame, uint16(payloadLen))
	default:
		frame = append(frame, 127)
		frame = binary.BigEndian.AppendUint64(frame, uint64(payloadLen))
	}

	return append(frame, payload...)
}

// EncodeMasked builds a client-to-server frame with the mask bit set and
// the payload XOR-masked under key. Used by the probe client and tests;
// the server itself never masks outbound frames.
func EncodeMasked(opcode byte, payload []byte, key [4]byte) []byte {
	frame := make([]byte, 0, 14+len(payload))
	frame = append(frame, 0x80|opcode)

	payloadLen := len(payload)
	switch {
	case payloadLen < 126:
		frame = append(frame, 0x80|byte(payloadLen))
	case payloadLen < 65536:
		frame = append(frame, 0x80|126)
		frame = binary.BigEndian.AppendUint16(frame, uint16(payloadLen))
	default:
		frame = append(frame, 0x80|127)
		frame = binary.BigEndian.AppendUint64(frame, uint64(payloadLen))
	}

	frame = append(frame, key[:]...)
	return append(frame, MaskPayload(payload, key)...)
}

// MaskPayload applies the RFC 6455 XOR transform. Masking and unmasking
// are the same operation, so this serves both directions.
func MaskPayload(payload []byte, key [4]byte) []byte {
	out := make([]byte, len(payload))
	for i := 0; i < len(payload); i++ {
		out[i] = payload[i] ^ key[i%4]
	}
	return out
}

// OpcodeString returns a human-readable opcode name
func (f *Frame) OpcodeString() string {
	switch f.Opcode {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(0x%X)", f.Opcode)
	}
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.FIN, f.OpcodeString(), f.Masked, len(f.Payload))
}
