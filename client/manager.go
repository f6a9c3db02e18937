package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ProbeCommand is sent on a reused connection to check it is still alive.
const ProbeCommand = "about"

// Manager owns the shared connection to the host. A live connection is probed
// before reuse and replaced when the probe fails, so callers recover from host
// restarts without doing anything. Failed commands are never retried.
type Manager struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn *Conn
}

func NewManager(addr string, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{addr: addr, timeout: timeout}
}

func (m *Manager) Addr() string {
	return m.addr
}

// Get returns a validated connection, connecting or reconnecting as needed.
func (m *Manager) Get(ctx context.Context) (*Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(ctx)
}

func (m *Manager) get(ctx context.Context) (*Conn, error) {
	if m.conn != nil {
		if m.conn.Connected() {
			_, err := m.conn.SendCommand(ctx, ProbeCommand, nil)
			if err == nil {
				return m.conn, nil
			}
			slog.Warn("Host connection is invalid, reconnecting", "addr", m.addr, "error", err)
		}
		m.conn.Disconnect()
		m.conn = nil
	}

	conn := NewConn(m.addr)
	conn.Timeout = m.timeout
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to host at %s: %w", m.addr, err)
	}
	m.conn = conn
	return conn, nil
}

// Send obtains the connection and sends one command on it.
func (m *Manager) Send(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, err := m.get(ctx)
	if err != nil {
		return nil, err
	}
	return conn.SendCommand(ctx, name, params)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Disconnect()
	m.conn = nil
	return err
}
