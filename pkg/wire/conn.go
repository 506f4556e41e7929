package wire

import (
	"bufio"
	"net"
	"time"
)

// DefaultReadyWait is how long Conn.Ready waits for data to arrive.
const DefaultReadyWait = time.Millisecond

// Conn adapts net.Conn to ReadySource.
type Conn struct {
	net.Conn
	ReadyWait time.Duration

	br *bufio.Reader
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{Conn: conn, ReadyWait: DefaultReadyWait, br: bufio.NewReader(conn)}
}

// Read implements io.Reader.
func (c *Conn) Read(p []byte) (int, error) {
	return c.br.Read(p)
}

// Ready implements ReadySource.
// A closed or failed connection reports ready so the following Read
// surfaces the error.
func (c *Conn) Ready() bool {
	if c.br.Buffered() > 0 {
		return true
	}
	wait := c.ReadyWait
	if wait <= 0 {
		wait = DefaultReadyWait
	}
	if err := c.Conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return true
	}
	_, err := c.br.Peek(1)
	c.Conn.SetReadDeadline(time.Time{})
	if err == nil {
		return true
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return false
	}
	return true
}
