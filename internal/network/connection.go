// Package network implements the TCP transport to an OpenTTD admin port.
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Transport errors.
var (
	// ErrNotConnected is returned when there is no connection to use.
	ErrNotConnected = errors.New("not connected")
	// ErrTransportClosed is returned by reads and writes on a closed
	// connection, including one the server closed.
	ErrTransportClosed = errors.New("transport closed")
)

// Defaults for Dial and NewConnection.
const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultReadTimeout  = 500 * time.Millisecond
	DefaultWriteTimeout = 10 * time.Second
)

// Connection wraps a TCP connection to an admin port. Reads are bounded by a
// short deadline so callers can stay responsive to cancellation; a deadline
// with nothing received is reported as an empty read, not an error.
type Connection struct {
	mu     sync.Mutex // serialises writes
	conn   net.Conn
	logger zerolog.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration

	connectedAt  time.Time
	lastActivity atomic.Int64 // unix nanos

	closed atomic.Bool
}

// DialConfig tunes Dial.
type DialConfig struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Dial connects to addr ("host:port").
func Dial(ctx context.Context, addr string, cfg DialConfig) (*Connection, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c := NewConnection(conn)
	if cfg.ReadTimeout > 0 {
		c.readTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		c.writeTimeout = cfg.WriteTimeout
	}

	c.logger.Info().Msg("connected")
	return c, nil
}

// NewConnection wraps an existing net.Conn.
func NewConnection(conn net.Conn) *Connection {
	c := &Connection{
		conn:         conn,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		connectedAt:  time.Now(),
		logger: log.With().
			Str("component", "connection").
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
	c.touch()
	return c
}

// SetReadTimeout changes how long a single Read may block.
func (c *Connection) SetReadTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readTimeout = d
}

// Read returns up to max bytes. It returns (nil, nil) when the read deadline
// passes without data and ErrTransportClosed once the stream has ended.
func (c *Connection) Read(ctx context.Context, max int) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	deadline := time.Now().Add(c.readTimeout)
	c.mu.Unlock()
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)

	buf := make([]byte, max)
	n, err := c.conn.Read(buf)
	if n > 0 {
		c.touch()
		return buf[:n], nil
	}
	if err == nil {
		return nil, nil
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return nil, ctx.Err()
	case errors.Is(err, io.EOF), peerGone(err), c.closed.Load():
		c.logger.Debug().Err(err).Msg("stream ended")
		return nil, fmt.Errorf("%w: %v", ErrTransportClosed, err)
	default:
		return nil, fmt.Errorf("failed to read: %w", err)
	}
}

// Write sends b in full.
func (c *Connection) Write(ctx context.Context, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrTransportClosed
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)

	if _, err := c.conn.Write(b); err != nil {
		if peerGone(err) || c.closed.Load() {
			c.logger.Debug().Err(err).Msg("write on closed stream")
			return fmt.Errorf("%w: %v", ErrTransportClosed, err)
		}
		return fmt.Errorf("failed to write packet: %w", err)
	}

	c.touch()
	return nil
}

// peerGone reports errors meaning the connection is unusable because one of
// the ends closed it.
func peerGone(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// Close closes the connection. A Read blocked on it returns promptly.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.logger.Info().Msg("connection closed")
	return c.conn.Close()
}

// IsClosed returns whether the connection has been closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// LastActivity returns the time of the last read/write activity.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// ConnectedAt returns the time the connection was established.
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// RemoteAddr returns the remote address of the connection.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}
