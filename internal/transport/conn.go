package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/park285/chesslink/internal/linkerr"
	"github.com/park285/chesslink/internal/obslog"
	"go.uber.org/zap"
)

const (
	// DefaultAddr is used when no address is configured.
	DefaultAddr = "127.0.0.1:22022"
	// MaxChunk bounds the bytes returned by a single Read.
	MaxChunk = 512

	defaultPollInterval = time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultReadWait     = time.Millisecond
)

// ReadStatus tells a poller what a Read produced.
type ReadStatus int

const (
	NoneAvailable ReadStatus = iota
	Data
	Fatal
)

func (s ReadStatus) String() string {
	switch s {
	case Data:
		return "data"
	case Fatal:
		return "fatal"
	default:
		return "none"
	}
}

// ReadResult is the outcome of one non-blocking Read. Err is set for Fatal and
// may be set for NoneAvailable when a transient error was swallowed.
type ReadResult struct {
	Status ReadStatus
	Data   []byte
	Err    error
}

// Conn is one peer stream. Reads never block longer than the read wait; writes
// block until the whole buffer is written or the write deadline passes.
type Conn struct {
	conn         net.Conn
	buf          []byte
	writeTimeout time.Duration
	readWait     time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

type Option func(*Conn)

func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWriteTimeout bounds a single Write. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Conn) { c.writeTimeout = d }
}

// WithPollInterval sets how long Listen waits between accept attempts.
func WithPollInterval(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func newConn(opts ...Option) *Conn {
	c := &Conn{
		buf:          make([]byte, MaxChunk),
		writeTimeout: defaultWriteTimeout,
		readWait:     defaultReadWait,
		pollInterval: defaultPollInterval,
		logger:       obslog.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wrap adopts an already established stream.
func Wrap(nc net.Conn, opts ...Option) *Conn {
	c := newConn(opts...)
	c.conn = nc
	return c
}

// Listen binds addr and blocks until exactly one peer connects, retrying the
// accept every poll interval. The listener is closed once the peer is accepted.
func Listen(ctx context.Context, addr string, opts ...Option) (*Conn, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, linkerr.Fatal(linkerr.KindBind, "listen "+addr, err)
	}
	return Accept(ctx, ln, opts...)
}

// Accept waits on an already bound listener. Callers that need the bound port
// before the peer connects (":0" addresses) bind first and hand it over.
func Accept(ctx context.Context, ln net.Listener, opts ...Option) (*Conn, error) {
	c := newConn(opts...)
	defer ln.Close()

	tcpLn, _ := ln.(*net.TCPListener)
	c.logger.Info("link_listen", zap.String("addr", ln.Addr().String()))
	for {
		if err := ctx.Err(); err != nil {
			return nil, linkerr.Fatal(linkerr.KindBind, "accept", err)
		}
		if tcpLn != nil {
			_ = tcpLn.SetDeadline(time.Now().Add(c.pollInterval))
		}
		nc, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.logger.Debug("link_listen_wait", zap.String("addr", ln.Addr().String()))
				continue
			}
			return nil, linkerr.Fatal(linkerr.KindBind, "accept", err)
		}
		c.conn = nc
		c.logger.Info("link_peer_connected", zap.String("remote", nc.RemoteAddr().String()))
		return c, nil
	}
}

// Connect opens a stream to addr.
func Connect(ctx context.Context, addr string, opts ...Option) (*Conn, error) {
	c := newConn(opts...)
	if addr == "" {
		addr = DefaultAddr
	}
	d := net.Dialer{Timeout: 10 * time.Second}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, linkerr.Fatal(linkerr.KindConnect, "connect "+addr, err)
	}
	c.conn = nc
	c.logger.Info("link_connected", zap.String("remote", nc.RemoteAddr().String()))
	return c, nil
}

// Read polls the stream once and returns at most MaxChunk bytes.
func (c *Conn) Read() ReadResult {
	if c == nil || c.conn == nil {
		return ReadResult{Status: Fatal, Err: linkerr.Fatal(linkerr.KindRead, "read", net.ErrClosed)}
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readWait))
	n, err := c.conn.Read(c.buf)
	if n > 0 {
		// a trailing error resurfaces on the next poll
		return ReadResult{Status: Data, Data: append([]byte(nil), c.buf[:n]...)}
	}
	if err == nil {
		return ReadResult{Status: NoneAvailable}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReadResult{Status: NoneAvailable}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return ReadResult{Status: Fatal, Err: linkerr.Fatal(linkerr.KindRead, "read", err)}
	}
	c.logger.Warn("link_read_error", zap.Error(err))
	return ReadResult{Status: NoneAvailable, Err: err}
}

// Write sends p in full. Any failure is fatal for the link.
func (c *Conn) Write(p []byte) error {
	if c == nil || c.conn == nil {
		return linkerr.Fatal(linkerr.KindWrite, "write", net.ErrClosed)
	}
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.conn.Write(p); err != nil {
		return linkerr.Fatal(linkerr.KindWrite, "write", err)
	}
	return nil
}

func (c *Conn) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Conn) RemoteAddr() string {
	if c == nil || c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}
