package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbocsi/hostbridge/proto"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// WSTransport serves the same command protocol over WebSocket. Every text
// message carries exactly one command and is answered by one text message.
type WSTransport struct {
	Addr      string
	onCommand CommandFunc
	metrics   *Metrics

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc

	name        string
	description string
	clients     map[string]Client
	cmu         sync.RWMutex

	maxClients      int
	maxMessageBytes int64
	writeTimeout    time.Duration
}

func NewWSTransport(addr string) *WSTransport {
	return &WSTransport{
		Addr:            addr,
		maxClients:      DefaultMaxClients,
		maxMessageBytes: proto.DefaultMaxMessageBytes,
		writeTimeout:    DefaultWriteTimeout,
		clients:         make(map[string]Client),
	}
}

func (t *WSTransport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.onCommand == nil {
		return fmt.Errorf("the OnCommand function is not defined, this transport is likely being started outside of the coordinator")
	}
	if t.running.Load() {
		slog.Info("WebSocket server is already running", "addr", t.Addr)
		return nil
	}

	l, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleWebSocket)

	t.listener = l
	t.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.running.Store(true)

	go func(srv *http.Server) {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("WebSocket server stopped", "addr", t.Addr, "error", err)
		}
	}(t.server)

	slog.Info("Started WebSocket server", "addr", l.Addr().String())
	return nil
}

func (t *WSTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	t.cmu.RLock()
	clientCount := len(t.clients)
	t.cmu.RUnlock()

	if t.maxClients > 0 && clientCount >= t.maxClients {
		slog.Warn("Max clients reached, rejecting connection", "remote_addr", r.RemoteAddr)
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewWSClient(conn, t)
	client.writeTimeout = t.writeTimeout

	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()

	// Register before handing off so Shutdown can always reach it.
	t.cmu.Lock()
	t.clients[client.Id] = client
	t.cmu.Unlock()
	if ctx.Err() != nil {
		client.Close()
	}

	go t.handleConnection(ctx, client)
}

func (t *WSTransport) handleConnection(ctx context.Context, client *WSClient) {
	conn := client.conn
	addr := client.RemoteAddr
	slog.Info("WebSocket client connected", "addr", addr, "id", client.Id)
	t.metrics.connOpened("websocket")

	defer func() {
		t.cmu.Lock()
		delete(t.clients, client.Id)
		t.cmu.Unlock()

		conn.Close()
		t.metrics.connClosed("websocket")
		slog.Info("WebSocket client disconnected", "addr", addr, "id", client.Id)
	}()

	conn.SetReadLimit(t.maxMessageBytes)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				slog.Warn("WebSocket connection error", "addr", addr, "error", err)
			}
			return
		}

		cmd, err := proto.DecodeCommand(data)
		if err != nil {
			slog.Warn("Invalid command received", "addr", addr, "error", err, "data", string(data))
			t.reply(client, proto.Errorf("invalid command: %v", err))
			continue
		}

		client.commands.Add(1)
		slog.Debug("WebSocket command received", "command", cmd.Name, "sender", client.Id, "size", len(data))
		t.reply(client, t.onCommand(ctx, cmd))
	}
}

func (t *WSTransport) reply(client *WSClient, resp proto.Response) {
	if err := client.Send(resp); err != nil {
		t.metrics.writeFailed("websocket")
		slog.Warn("Failed to send response, client likely disconnected", "id", client.Id, "status", resp.Status, "error", err)
	}
}

func (t *WSTransport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running.Swap(false) {
		return nil
	}
	slog.Info("Shutting down WebSocket server", "addr", t.Addr)

	t.cancel()
	// http.Server.Close does not touch hijacked connections.
	t.cmu.RLock()
	for _, c := range t.clients {
		c.Close()
	}
	t.cmu.RUnlock()

	return t.server.Close()
}

// ListenAddr returns the bound address, or nil when not running.
func (t *WSTransport) ListenAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running.Load() {
		return nil
	}
	return t.listener.Addr()
}

func (t *WSTransport) OnCommand(fn CommandFunc) {
	t.onCommand = fn
}

func (t *WSTransport) Meta() TransportMetadata {
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
		ID:          "ws-" + t.Addr,
		Name:        t.name,
		Description: t.description,
		Protocol:    "websocket",
		Address:     addr,
		Clients:     clients,
		MaxClients:  t.maxClients,
		Running:     t.running.Load(),
	}
}

func (t *WSTransport) SetName(name string) {
	t.name = name
}

func (t *WSTransport) SetDescription(description string) {
	t.description = description
}

func (t *WSTransport) SetMaxClients(n int) {
	t.maxClients = n
}

func (t *WSTransport) SetMaxMessageBytes(n int64) {
	t.maxMessageBytes = n
}

func (t *WSTransport) SetWriteTimeout(d time.Duration) {
	t.writeTimeout = d
}

func (t *WSTransport) SetMetrics(m *Metrics) {
	t.metrics = m
}
