package wire

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInsufficientSpace indicates the destination buffer can't hold the frame.
	ErrInsufficientSpace = errors.New("insufficient space")
	// ErrInvalidMessageSize indicates a declared frame length below HeaderSize.
	// The stream is desynchronized and must be dropped.
	ErrInvalidMessageSize = errors.New("invalid message size")
	// ErrFrameTooLarge indicates a declared frame length beyond the reader capacity.
	ErrFrameTooLarge = errors.New("frame exceeds reader capacity")
	// ErrWouldBlock indicates no complete frame is available yet.
	ErrWouldBlock = errors.New("would block")
	// ErrEOF indicates the peer closed the stream.
	ErrEOF = io.EOF
)

// EncodeError wraps a structured serialization failure.
type EncodeError struct {
	Err error
}

// Error implements error.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode error: %v", e.Err)
}

// Unwrap returns the serializer error.
func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError wraps a structured parse failure.
// Only the offending frame is affected.
type DecodeError struct {
	Seq uint32
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error (seq=%d): %v", e.Seq, e.Err)
}

// Unwrap returns the parser error.
func (e *DecodeError) Unwrap() error { return e.Err }

// IsStreamFatal tells if err requires the connection to be dropped.
func IsStreamFatal(err error) bool {
	return errors.Is(err, ErrInvalidMessageSize) || errors.Is(err, ErrFrameTooLarge)
}
