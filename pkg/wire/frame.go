package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/msgs"
)

// HeaderSize is the size of the fixed frame header.
const HeaderSize = 9

// MaxFrameSize is the largest frame produced by Writer.
const MaxFrameSize = 5192

// Kind is the payload discriminator.
type Kind byte

// Payload kinds.
const (
	KindTyped Kind = 0
	KindRaw   Kind = 1
)

// Payload is the content of a frame: either a structured message or
// opaque bytes.
type Payload struct {
	Kind Kind
	Msg  fx.Message
	Raw  []byte
}

// Typed creates a structured payload.
func Typed(msg fx.Message) Payload {
	return Payload{Kind: KindTyped, Msg: msg}
}

// Raw creates an opaque payload.
func Raw(data []byte) Payload {
	return Payload{Kind: KindRaw, Raw: data}
}

// Frame is one decoded frame.
type Frame struct {
	Length  uint32
	Seq     uint32
	Payload Payload
}

// Encode writes one frame for payload into buf using the sequence
// number in *seq, which is incremented only on success.
func Encode(seq *uint32, payload Payload, buf []byte) (int, error) {
	if len(buf) < HeaderSize {
		return 0, ErrInsufficientSpace
	}
	var body []byte
	switch payload.Kind {
	case KindRaw:
		body = payload.Raw
	case KindTyped:
		data, err := msgs.Marshal(payload.Msg)
		if err != nil {
			return 0, &EncodeError{Err: err}
		}
		body = data
	default:
		return 0, &EncodeError{Err: &unknownKindError{kind: payload.Kind}}
	}
	size := HeaderSize + len(body)
	if size > len(buf) {
		return 0, ErrInsufficientSpace
	}
	binary.BigEndian.PutUint32(buf[4:8], *seq)
	buf[8] = byte(payload.Kind)
	copy(buf[HeaderSize:], body)
	binary.BigEndian.PutUint32(buf[0:4], uint32(size))
	*seq++
	return size, nil
}

// Decode parses a frame whose full length is present in buf.
// A raw payload references buf directly.
func Decode(buf []byte) (Frame, error) {
	if len(buf) < 4 {
		return Frame{}, &DecodeError{Err: io.ErrUnexpectedEOF}
	}
	length := binary.BigEndian.Uint32(buf[0:4])
	if length < HeaderSize {
		return Frame{}, ErrInvalidMessageSize
	}
	if uint32(len(buf)) < length {
		return Frame{}, &DecodeError{Err: io.ErrUnexpectedEOF}
	}
	f := Frame{Length: length, Seq: binary.BigEndian.Uint32(buf[4:8])}
	body := buf[HeaderSize:length]
	switch kind := Kind(buf[8]); kind {
	case KindRaw:
		f.Payload = Raw(body)
	case KindTyped:
		msg, err := msgs.Unmarshal(body)
		if err != nil {
			return f, &DecodeError{Seq: f.Seq, Err: err}
		}
		f.Payload = Typed(msg)
	default:
		return f, &DecodeError{Seq: f.Seq, Err: &unknownKindError{kind: kind}}
	}
	return f, nil
}

type unknownKindError struct {
	kind Kind
}

func (e *unknownKindError) Error() string {
	return fmt.Sprintf("unknown payload kind %d", e.kind)
}

// Writer encodes frames onto a stream with its own sequence counter.
// It is not safe for concurrent use.
type Writer struct {
	w   io.Writer
	seq uint32
	buf []byte
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, buf: make([]byte, MaxFrameSize)}
}

// WriteFrame encodes and writes one frame.
// Encoding failures never write partial frames.
func (w *Writer) WriteFrame(payload Payload) error {
	n, err := Encode(&w.seq, payload, w.buf)
	if err != nil {
		return err
	}
	_, err = w.w.Write(w.buf[:n])
	return err
}

// WriteMsg is shorthand for WriteFrame(Typed(msg)).
func (w *Writer) WriteMsg(msg fx.Message) error {
	return w.WriteFrame(Typed(msg))
}
