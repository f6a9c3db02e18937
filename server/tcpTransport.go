package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mbocsi/hostbridge/proto"
)

const (
	DefaultMaxClients   = 16
	DefaultStopTimeout  = time.Second
	DefaultWriteTimeout = 15 * time.Second
	acceptBackoff       = 500 * time.Millisecond
)

// TCPTransport is the bridge server. Each accepted connection gets its own
// goroutine that decodes one command at a time, dispatches it and writes
// exactly one response before reading the next.
type TCPTransport struct {
	Addr      string
	onCommand CommandFunc
	metrics   *Metrics

	mu         sync.Mutex // serializes Start and Shutdown
	listener   net.Listener
	running    atomic.Bool
	acceptDone chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc

	name        string
	description string
	clients     map[string]Client
	cmu         sync.RWMutex

	maxClients      int
	maxMessageBytes int
	stopTimeout     time.Duration
	writeTimeout    time.Duration
}

func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{
		Addr:            addr,
		maxClients:      DefaultMaxClients,
		maxMessageBytes: proto.DefaultMaxMessageBytes,
		stopTimeout:     DefaultStopTimeout,
		writeTimeout:    DefaultWriteTimeout,
		clients:         make(map[string]Client),
	}
}

// Start binds the listener and spawns the accept loop. Starting a running
// transport is a no-op.
func (t *TCPTransport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.onCommand == nil {
		return fmt.Errorf("the OnCommand function is not defined, this transport is likely being started outside of the coordinator")
	}
	if t.running.Load() {
		slog.Info("Server is already running", "addr", t.Addr)
		return nil
	}

	l, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return err
	}
	t.listener = l
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.acceptDone = make(chan struct{})
	t.running.Store(true)

	go t.acceptLoop(t.ctx, l, t.acceptDone)

	slog.Info("Started tcp server", "addr", l.Addr().String())
	return nil
}

func (t *TCPTransport) acceptLoop(ctx context.Context, l net.Listener, done chan struct{}) {
	defer close(done)
	defer slog.Debug("Accept loop stopped", "addr", t.Addr)

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("Error accepting connection", "addr", t.Addr, "error", err)
			time.Sleep(acceptBackoff)
			continue
		}

		t.cmu.RLock()
		clientCount := len(t.clients)
		t.cmu.RUnlock()

		if t.maxClients > 0 && clientCount >= t.maxClients {
			slog.Warn("Max clients reached, rejecting connection", "remote_addr", conn.RemoteAddr())
			conn.Close()
			continue
		}

		client := NewTCPClient(conn, t)
		client.writeTimeout = t.writeTimeout

		// Register before handing off so Shutdown can always reach it.
		t.cmu.Lock()
		t.clients[client.Id] = client
		t.cmu.Unlock()
		if ctx.Err() != nil {
			client.Close()
		}

		go t.handleConnection(ctx, client)
	}
}

func (t *TCPTransport) handleConnection(ctx context.Context, client *TCPClient) {
	addr := client.RemoteAddr
	slog.Info("Client connected", "addr", addr, "id", client.Id)
	t.metrics.connOpened("tcp")

	defer func() {
		t.cmu.Lock()
		delete(t.clients, client.Id)
		t.cmu.Unlock()

		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("Error closing connection", "addr", addr, "id", client.Id, "error", err)
		}
		t.metrics.connClosed("tcp")
		slog.Info("Client disconnected", "addr", addr, "id", client.Id)
	}()

	reader := proto.NewFrameReader(client.conn, t.maxMessageBytes)

	for {
		raw, err := reader.Next()
		if err != nil {
			var malformed *proto.MalformedError
			switch {
			case errors.As(err, &malformed):
				slog.Warn("Malformed command received", "addr", addr, "error", malformed.Err)
				t.reply(client, proto.Errorf("malformed command: %v", malformed.Err))
				continue
			case errors.Is(err, proto.ErrMessageTooLarge):
				slog.Warn("Command too large, closing connection", "addr", addr, "error", err)
				t.reply(client, proto.Failure(err))
				return
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				return
			default:
				if ctx.Err() == nil {
					slog.Warn("Connection error", "addr", addr, "error", err)
				}
				return
			}
		}

		cmd, err := proto.DecodeCommand(raw)
		if err != nil {
			slog.Warn("Invalid command received", "addr", addr, "error", err, "data", string(raw))
			t.reply(client, proto.Errorf("invalid command: %v", err))
			continue
		}

		client.commands.Add(1)
		slog.Debug("Command received", "command", cmd.Name, "sender", client.Id, "size", len(raw))
		t.reply(client, t.onCommand(ctx, cmd))
	}
}

// reply writes resp; a peer that has gone away is logged, not fatal. The next
// read notices the disconnect.
func (t *TCPTransport) reply(client *TCPClient, resp proto.Response) {
	if err := client.Send(resp); err != nil {
		t.metrics.writeFailed("tcp")
		slog.Warn("Failed to send response, client likely disconnected", "id", client.Id, "status", resp.Status, "error", err)
	}
}

// Shutdown stops accepting, closes every open connection and waits a bounded
// time for the accept loop. It is idempotent. Handlers blocked on the owner
// thread are not waited for; their replies fail against the closed connection.
func (t *TCPTransport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running.Swap(false) {
		return nil
	}
	slog.Info("Shutting down tcp server", "addr", t.Addr)

	t.cancel()
	err := t.listener.Close()

	t.cmu.RLock()
	for _, c := range t.clients {
		c.Close()
	}
	t.cmu.RUnlock()

	select {
	case <-t.acceptDone:
	case <-time.After(t.stopTimeout):
		slog.Warn("Accept loop did not stop in time", "addr", t.Addr, "timeout", t.stopTimeout)
	}

	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// ListenAddr returns the bound address, or nil when not running.
func (t *TCPTransport) ListenAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running.Load() {
		return nil
	}
	return t.listener.Addr()
}

func (t *TCPTransport) Running() bool {
	return t.running.Load()
}

func (t *TCPTransport) OnCommand(fn CommandFunc) {
	t.onCommand = fn
}

func (t *TCPTransport) Meta() TransportMetadata {
	addr := t.Addr
	if a := t.ListenAddr(); a != nil {
		addr = a.String()
	}

	t.cmu.RLock()
	clients := make([]ClientInfo, 0, len(t.clients))
	for _, c := range t.clients {
		clients = append(clients, c.Meta().Info())
	}
	t.cmu.RUnlock()

	return TransportMetadata{
		ID:          "tcp-" + t.Addr,
		Name:        t.name,
		Description: t.description,
		Protocol:    "tcp",
		Address:     addr,
		Clients:     clients,
		MaxClients:  t.maxClients,
		Running:     t.running.Load(),
	}
}

func (t *TCPTransport) SetName(name string) {
	t.name = name
}

func (t *TCPTransport) SetDescription(description string) {
	t.description = description
}

func (t *TCPTransport) SetMaxClients(n int) {
	t.maxClients = n
}

func (t *TCPTransport) SetMaxMessageBytes(n int) {
	t.maxMessageBytes = n
}

func (t *TCPTransport) SetStopTimeout(d time.Duration) {
	t.stopTimeout = d
}

func (t *TCPTransport) SetWriteTimeout(d time.Duration) {
	t.writeTimeout = d
}

func (t *TCPTransport) SetMetrics(m *Metrics) {
	t.metrics = m
}
