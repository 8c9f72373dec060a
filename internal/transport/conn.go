package transport

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conn wraps a TCP connection with newline-delimited text handling.
// Reads are line-based; writes are serialized by an internal mutex.
type Conn struct {
	id     string
	raw    net.Conn
	reader *bufio.Reader
	mu     sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps a raw TCP connection for line-oriented chat traffic.
// Every connection is assigned a UUID used to correlate log entries.
//
// Precondition: raw must be a valid, open network connection.
// Postcondition: Returns a Conn ready for reading and writing.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           uuid.NewString(),
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ID returns the connection's log correlation identifier.
func (c *Conn) ID() string {
	return c.id
}

// ReadLine reads a single line of input. The returned line does not
// include the trailing \n or \r\n.
//
// Postcondition: Returns the next line of text input, or an error
// (including io.EOF). A partial line at EOF is returned alongside the error.
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	line, err := c.reader.ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if err != nil {
		return line, err
	}
	return line, nil
}

// WriteString sends raw text to the client. The caller is responsible for
// any trailing newline; lines queued by the chat core arrive preformatted.
//
// Postcondition: The text is written to the connection.
func (c *Conn) WriteString(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := fmt.Fprint(c.raw, text)
	return err
}

// WriteLine sends a line of text followed by \n to the client.
//
// Precondition: text should not contain trailing newline characters.
func (c *Conn) WriteLine(text string) error {
	return c.WriteString(text + "\n")
}

// CloseWrite half-closes the connection's write side, signalling the peer
// that no further data will be sent. Falls back to a full close when the
// underlying connection does not support half-close.
func (c *Conn) CloseWrite() error {
	if tc, ok := c.raw.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return c.raw.Close()
}

// Close closes the underlying TCP connection.
//
// Postcondition: The connection is closed and no longer usable.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the remote network address of the client.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}
