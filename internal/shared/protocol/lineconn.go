package protocol

import (
	"bufio"
	"net"
	"strings"
	"sync"
)

// LineConn wraps a control-plane connection with line-oriented reads and
// writes. Reads are owned by a single session goroutine; writes are
// serialized so that relays and heartbeat acks from other goroutines never
// interleave inside a multi-line message.
type LineConn struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex
}

func NewLineConn(conn net.Conn) *LineConn {
	return &LineConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// ReadLine blocks until a full line arrives and returns it without the
// trailing newline. Carriage returns are stripped for telnet-friendliness.
func (c *LineConn) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteLines writes each argument as its own line in a single critical
// section. A multi-line reply is therefore atomic with respect to concurrent
// writers on the same connection.
func (c *LineConn) WriteLines(lines ...string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := c.conn.Write([]byte(b.String()))
	return err
}

func (c *LineConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// RemoteHost returns the IP portion of the peer address. Used when relaying a
// worker's ephemeral transfer port to the client.
func (c *LineConn) RemoteHost() string {
	host, _, err := net.SplitHostPort(c.conn.RemoteAddr().String())
	if err != nil {
		return c.conn.RemoteAddr().String()
	}
	return host
}

func (c *LineConn) Close() error {
	return c.conn.Close()
}
