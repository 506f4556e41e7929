package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultCapacity is the default buffer size of a Reader.
const DefaultCapacity = MaxFrameSize

// ReadySource is a stream which can tell whether a read would return
// data without suspending.
type ReadySource interface {
	io.Reader
	Ready() bool
}

// ReaderState is the parse state of a Reader.
type ReaderState int

// Reader states.
const (
	ReaderEmpty ReaderState = iota
	ReaderAccumulating
	ReaderHeaderKnown
	ReaderReady
)

// Reader reassembles frames from an arbitrarily chunked stream.
//
// Bytes of a returned frame stay in the buffer and are marked consumed.
// They are compacted away when the next parse attempt begins, so a raw
// payload returned by Next, Poll or ReadFrame is only valid until the
// next call to any of those or Feed.
type Reader struct {
	buf      []byte
	filled   int
	consumed int
}

// NewReader creates a Reader with a fixed capacity.
func NewReader(capacity int) *Reader {
	if capacity < HeaderSize {
		capacity = DefaultCapacity
	}
	return &Reader{buf: make([]byte, capacity)}
}

// Capacity returns the buffer size.
func (r *Reader) Capacity() int {
	return len(r.buf)
}

// Buffered returns the number of unconsumed bytes.
func (r *Reader) Buffered() int {
	return r.filled - r.consumed
}

// State reports the current parse state.
func (r *Reader) State() ReaderState {
	pending := r.buf[r.consumed:r.filled]
	switch {
	case len(pending) == 0:
		return ReaderEmpty
	case len(pending) < HeaderSize:
		return ReaderAccumulating
	case int(binary.BigEndian.Uint32(pending)) > len(pending):
		return ReaderHeaderKnown
	default:
		return ReaderReady
	}
}

// Reset discards all buffered bytes.
func (r *Reader) Reset() {
	r.filled, r.consumed = 0, 0
}

// Feed appends data to the buffer tail and returns how many bytes fit.
func (r *Reader) Feed(data []byte) int {
	r.compact()
	n := copy(r.buf[r.filled:], data)
	r.filled += n
	return n
}

// Next attempts to parse one frame from buffered bytes only.
// It returns ErrWouldBlock if no complete frame is buffered.
func (r *Reader) Next() (Frame, error) {
	f, ok, err := r.parse()
	if err != nil {
		return f, err
	}
	if !ok {
		return f, ErrWouldBlock
	}
	return f, nil
}

// Poll parses a buffered frame, or if none is complete, issues at most one
// read when src reports readiness then parses again.
// It never suspends and returns ErrWouldBlock when still incomplete.
func (r *Reader) Poll(src ReadySource) (Frame, error) {
	if f, ok, err := r.parse(); ok || err != nil {
		return f, err
	}
	if !src.Ready() {
		return Frame{}, ErrWouldBlock
	}
	if err := r.fill(src); err != nil {
		return Frame{}, err
	}
	return r.Next()
}

// ReadFrame reads from src until one frame is complete.
func (r *Reader) ReadFrame(src io.Reader) (Frame, error) {
	for {
		if f, ok, err := r.parse(); ok || err != nil {
			return f, err
		}
		if err := r.fill(src); err != nil {
			return Frame{}, err
		}
	}
}

func (r *Reader) fill(src io.Reader) error {
	n, err := src.Read(r.buf[r.filled:])
	r.filled += n
	if n > 0 {
		return nil
	}
	if err == nil || err == io.EOF {
		return ErrEOF
	}
	return err
}

func (r *Reader) compact() {
	if r.consumed == 0 {
		return
	}
	copy(r.buf, r.buf[r.consumed:r.filled])
	r.filled -= r.consumed
	r.consumed = 0
}

func (r *Reader) parse() (Frame, bool, error) {
	r.compact()
	if r.filled < 4 {
		return Frame{}, false, nil
	}
	length := binary.BigEndian.Uint32(r.buf[0:4])
	if length < HeaderSize {
		r.Reset()
		return Frame{}, false, ErrInvalidMessageSize
	}
	if length > uint32(len(r.buf)) {
		r.Reset()
		return Frame{}, false, fmt.Errorf("%w: declared %d, capacity %d", ErrFrameTooLarge, length, len(r.buf))
	}
	if uint32(r.filled) < length {
		return Frame{}, false, nil
	}
	r.consumed = int(length)
	f, err := Decode(r.buf[:length])
	if err != nil {
		return f, false, err
	}
	return f, true, nil
}
