package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mbocsi/hostbridge/proto"
)

const DefaultTimeout = 15 * time.Second

var (
	ErrNotConnected       = errors.New("not connected to host")
	ErrClosedBeforeData   = errors.New("connection closed before receiving any data")
	ErrIncompleteResponse = errors.New("incomplete JSON response received")
	ErrNoData             = errors.New("no data received")
)

// RemoteError is an error response returned by the host.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "unknown error from host"
	}
	return e.Message
}

// Conn is one outbound bridge connection. It is safe for concurrent use but
// commands are sent one at a time.
type Conn struct {
	Addr    string
	Timeout time.Duration // per response; DefaultTimeout when zero

	mu     sync.Mutex
	conn   net.Conn
	reader *proto.FrameReader
	dialer net.Dialer
}

func NewConn(addr string) *Conn {
	return &Conn{Addr: addr, Timeout: DefaultTimeout}
}

// Connect dials the host unless already connected. On failure the Conn stays
// disconnected.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connect(ctx)
}

func (c *Conn) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		slog.Error("Failed to connect to host", "addr", c.Addr, "error", err)
		return err
	}
	c.conn = conn
	c.reader = proto.NewFrameReader(conn, proto.DefaultMaxMessageBytes)
	slog.Info("Connected to host", "addr", c.Addr)
	return nil
}

func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidate()
}

func (c *Conn) invalidate() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Error("Failed to disconnect from host", "addr", c.Addr, "error", err)
		return err
	}
	slog.Info("Disconnected from host", "addr", c.Addr)
	return nil
}

func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendCommand writes one command and waits for its response. An error
// response is returned as *RemoteError. Any failure drops the connection so
// the next use has to reconnect.
func (c *Conn) SendCommand(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	result, err := c.roundTrip(ctx, name, params)
	if err != nil {
		slog.Error("Failed to send command to host", "command", name, "error", err)
		c.invalidate()
		return nil, err
	}
	return result, nil
}

func (c *Conn) roundTrip(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	slog.Info("Sending command", "command", name, "params", params)
	if err := proto.WriteMessage(c.conn, proto.NewCommand(name, params)); err != nil {
		return nil, ctxOr(ctx, fmt.Errorf("write command: %w", err))
	}

	raw, err := c.receiveFullResponse()
	if err != nil {
		return nil, ctxOr(ctx, err)
	}

	resp, err := proto.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	slog.Info("Response parsed", "command", name, "status", resp.Status)

	if resp.IsError() {
		return nil, &RemoteError{Command: name, Message: resp.Message}
	}
	if resp.Result == nil {
		return map[string]any{}, nil
	}
	return resp.Result, nil
}

// receiveFullResponse reads until the buffered bytes form one complete JSON
// value.
func (c *Conn) receiveFullResponse() ([]byte, error) {
	raw, err := c.reader.Next()
	if err == nil {
		slog.Debug("Received complete response", "bytes", len(raw))
		return raw, nil
	}

	var (
		netErr    net.Error
		malformed *proto.MalformedError
	)
	switch {
	case errors.Is(err, proto.ErrIncomplete):
		return nil, fmt.Errorf("%w: %w", ErrIncompleteResponse, err)
	case errors.As(err, &malformed):
		return nil, fmt.Errorf("malformed response: %w", malformed.Err)
	case errors.Is(err, io.EOF):
		return nil, ErrClosedBeforeData
	case errors.As(err, &netErr) && netErr.Timeout():
		slog.Warn("Socket timeout during chunked receive")
		return nil, ErrNoData
	default:
		return nil, err
	}
}

// ctxOr attributes a failure to ctx when ctx ended first. The socket deadline
// can fire a moment before the context's own timer.
func ctxOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}
