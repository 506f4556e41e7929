package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofleet/pkg/msgs"
)

func encodeFrame(t *testing.T, seq uint32, payload Payload) []byte {
	buf := make([]byte, MaxFrameSize)
	n, err := Encode(&seq, payload, buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestEncodeHeader(t *testing.T) {
	seq := uint32(7)
	buf := make([]byte, 32)
	n, err := Encode(&seq, Raw([]byte{0xde, 0xad}), buf)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, []byte{0, 0, 0, 11, 0, 0, 0, 7, 1, 0xde, 0xad}, buf[:n])
	require.Equal(t, uint32(8), seq)
}

func TestEncodeInsufficientSpace(t *testing.T) {
	testCases := []struct {
		name    string
		size    int
		payload Payload
	}{
		{name: "typed in 8 bytes", size: 8, payload: Typed(&msgs.TargetVelocity{LinearX: 1})},
		{name: "raw in header only", size: HeaderSize, payload: Raw([]byte{1})},
		{name: "raw empty in 8 bytes", size: 8, payload: Raw(nil)},
		{name: "typed exceeds", size: HeaderSize + 2, payload: Typed(&msgs.TargetVelocity{LinearX: 1, LinearY: 2})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seq := uint32(5)
			buf := make([]byte, tc.size)
			_, err := Encode(&seq, tc.payload, buf)
			require.Equal(t, ErrInsufficientSpace, err)
			require.Equal(t, uint32(5), seq)
			require.Equal(t, make([]byte, tc.size), buf)
		})
	}
}

func TestEncodeNotSerializable(t *testing.T) {
	seq := uint32(0)
	_, err := Encode(&seq, Payload{Kind: KindTyped}, make([]byte, 64))
	var encErr *EncodeError
	require.ErrorAs(t, err, &encErr)
	require.Equal(t, msgs.ErrNotSerializable, encErr.Err)
	require.Equal(t, uint32(0), seq)
}

func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		seq     uint32
		payload Payload
	}{
		{name: "velocity", seq: 5, payload: Typed(&msgs.TargetVelocity{LinearX: 1.0, LinearY: 0.0})},
		{name: "empty message", seq: 0, payload: Typed(&msgs.Ping{})},
		{name: "firmware", seq: 0xffffffff, payload: Typed(&msgs.FirmwareRequest{Op: msgs.FirmwareOpWritePart, Offset: 4096, Length: 4096})},
		{name: "raw", seq: 1, payload: Raw([]byte("hello"))},
		{name: "raw empty", seq: 2, payload: Raw([]byte{})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Decode(encodeFrame(t, tc.seq, tc.payload))
			require.NoError(t, err)
			require.Equal(t, tc.seq, f.Seq)
			require.Equal(t, tc.payload.Kind, f.Payload.Kind)
			if tc.payload.Kind == KindRaw {
				require.Equal(t, []byte(tc.payload.Raw), []byte(f.Payload.Raw))
			} else {
				require.Equal(t, tc.payload.Msg, f.Payload.Msg)
			}
		})
	}
}

func TestDecodeInvalidSize(t *testing.T) {
	for l := uint32(0); l < HeaderSize; l++ {
		buf := make([]byte, HeaderSize)
		binary.BigEndian.PutUint32(buf, l)
		_, err := Decode(buf)
		require.Equal(t, ErrInvalidMessageSize, err)
	}
}

func TestDecodeFailure(t *testing.T) {
	frame := encodeFrame(t, 3, Raw([]byte{0xff, 0xff, 0xff}))
	frame[8] = byte(KindTyped)
	_, err := Decode(frame)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, uint32(3), decErr.Seq)
	require.False(t, IsStreamFatal(err))
}

func TestReaderChunkIndependence(t *testing.T) {
	frame := encodeFrame(t, 5, Typed(&msgs.TargetVelocity{LinearX: 1.5, Angular: -0.25}))
	whole := NewReader(DefaultCapacity)
	whole.Feed(frame)
	expected, err := whole.Next()
	require.NoError(t, err)

	for split := 0; split <= len(frame); split++ {
		r := NewReader(DefaultCapacity)
		r.Feed(frame[:split])
		if split < len(frame) {
			_, err := r.Next()
			require.Equalf(t, ErrWouldBlock, err, "split %d", split)
		}
		r.Feed(frame[split:])
		f, err := r.Next()
		require.NoErrorf(t, err, "split %d", split)
		require.Equalf(t, expected, f, "split %d", split)
		require.Equal(t, ReaderEmpty, r.State())
	}
}

type chunkedReader struct {
	data []byte
	rnd  *rand.Rand
	max  int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := 1 + c.rnd.Intn(c.max)
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestReaderNoLossNoDuplication(t *testing.T) {
	var stream bytes.Buffer
	var payloads []Payload
	w := NewWriter(&stream)
	for i := 0; i < 200; i++ {
		var p Payload
		if i%3 == 0 {
			p = Raw(bytes.Repeat([]byte{byte(i)}, i*7))
		} else {
			p = Typed(&msgs.MotorsOverride{Overrides: []*msgs.MotorOverride{{Motor: uint32(i % 3), Speed: float32(i)}}})
		}
		payloads = append(payloads, p)
		require.NoError(t, w.WriteFrame(p))
	}

	for _, max := range []int{1, 3, 17, 512, 4096} {
		r := NewReader(DefaultCapacity)
		src := &chunkedReader{data: append([]byte(nil), stream.Bytes()...), rnd: rand.New(rand.NewSource(int64(max))), max: max}
		for i, p := range payloads {
			f, err := r.ReadFrame(src)
			require.NoErrorf(t, err, "max %d frame %d", max, i)
			require.Equal(t, uint32(i), f.Seq)
			require.Equal(t, p.Kind, f.Payload.Kind)
			if p.Kind == KindRaw {
				require.Equal(t, []byte(p.Raw), []byte(f.Payload.Raw))
			} else {
				require.Equal(t, p.Msg, f.Payload.Msg)
			}
		}
		_, err := r.ReadFrame(src)
		require.Equal(t, ErrEOF, err)
	}
}

func TestReaderMalformedLengthRecovery(t *testing.T) {
	r := NewReader(DefaultCapacity)
	r.Feed([]byte{0, 0, 0, 4, 1, 2, 3, 4, 5, 6})
	_, err := r.Next()
	require.Equal(t, ErrInvalidMessageSize, err)
	require.Equal(t, 0, r.Buffered())
	require.Equal(t, ReaderEmpty, r.State())

	r.Feed(encodeFrame(t, 9, Typed(&msgs.Ping{})))
	f, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, uint32(9), f.Seq)
	require.Equal(t, &msgs.Ping{}, f.Payload.Msg)
}

func TestReaderFrameTooLarge(t *testing.T) {
	r := NewReader(64)
	header := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(header, 65)
	r.Feed(header)
	_, err := r.Next()
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.True(t, IsStreamFatal(err))
	require.Equal(t, 0, r.Buffered())
}

func TestReaderDecodeErrorKeepsStream(t *testing.T) {
	bad := encodeFrame(t, 1, Raw([]byte{0xff, 0xff}))
	bad[8] = byte(KindTyped)
	good := encodeFrame(t, 2, Typed(&msgs.Pong{}))
	r := NewReader(DefaultCapacity)
	r.Feed(append(bad, good...))
	_, err := r.Next()
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	f, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, uint32(2), f.Seq)
}

func TestReaderStates(t *testing.T) {
	frame := encodeFrame(t, 0, Raw([]byte{1, 2, 3}))
	r := NewReader(DefaultCapacity)
	require.Equal(t, ReaderEmpty, r.State())
	r.Feed(frame[:3])
	require.Equal(t, ReaderAccumulating, r.State())
	r.Feed(frame[3:10])
	require.Equal(t, ReaderHeaderKnown, r.State())
	r.Feed(frame[10:])
	require.Equal(t, ReaderReady, r.State())
	_, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, ReaderEmpty, r.State())
}

type testSource struct {
	chunks [][]byte
	reads  int
}

func (s *testSource) Ready() bool { return len(s.chunks) > 0 }

func (s *testSource) Read(p []byte) (int, error) {
	s.reads++
	n := copy(p, s.chunks[0])
	s.chunks = s.chunks[1:]
	return n, nil
}

func TestReaderPoll(t *testing.T) {
	frame := encodeFrame(t, 4, Typed(&msgs.ResetAngle{}))
	two := append(append([]byte(nil), frame...), frame...)
	src := &testSource{chunks: [][]byte{frame[:5], frame[5:], two}}
	r := NewReader(DefaultCapacity)

	_, err := r.Poll(src)
	require.Equal(t, ErrWouldBlock, err)
	require.Equal(t, 1, src.reads)

	f, err := r.Poll(src)
	require.NoError(t, err)
	require.Equal(t, uint32(4), f.Seq)
	require.Equal(t, 2, src.reads)

	for i := 0; i < 2; i++ {
		_, err = r.Poll(src)
		require.NoError(t, err)
	}
	require.Equal(t, 3, src.reads)

	_, err = r.Poll(src)
	require.Equal(t, ErrWouldBlock, err)
	require.Equal(t, 3, src.reads)
}

func TestReaderZeroReadIsEOF(t *testing.T) {
	r := NewReader(DefaultCapacity)
	_, err := r.ReadFrame(bytes.NewReader(nil))
	require.Equal(t, ErrEOF, err)
}

func TestConnPoll(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	server, err := ln.Accept()
	require.NoError(t, err)
	conn := NewConn(server)
	defer conn.Close()

	r := NewReader(DefaultCapacity)
	_, err = r.Poll(conn)
	require.Equal(t, ErrWouldBlock, err)

	frame := encodeFrame(t, 5, Typed(&msgs.ResetAngle{}))
	_, err = client.Write(frame[:3])
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := r.Poll(conn)
		return err == ErrWouldBlock && r.Buffered() == 3
	}, time.Second, time.Millisecond)

	_, err = client.Write(frame[3:])
	require.NoError(t, err)
	var f Frame
	require.Eventually(t, func() bool {
		f, err = r.Poll(conn)
		return err == nil
	}, time.Second, time.Millisecond)
	require.Equal(t, uint32(5), f.Seq)

	require.NoError(t, client.Close())
	require.Eventually(t, func() bool {
		_, err = r.Poll(conn)
		return err != ErrWouldBlock
	}, time.Second, time.Millisecond)
	require.Equal(t, ErrEOF, err)
}
