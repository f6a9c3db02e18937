package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mbocsi/hostbridge/proto"
)

// CommandFunc handles one decoded command and returns its response.
type CommandFunc func(ctx context.Context, cmd proto.Command) proto.Response

type Transport interface {
	Start() error
	Shutdown() error
	OnCommand(CommandFunc)
	Meta() TransportMetadata
	SetName(name string)
	SetDescription(description string)
}

type TransportMetadata struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`        // Human-friendly name, e.g. "Bridge TCP server"
	Protocol    string       `json:"protocol"`    // "tcp", "websocket"
	Address     string       `json:"address"`     // Bound address once running, configured address otherwise
	Description string       `json:"description"` // Optional, short purpose/use case
	Clients     []ClientInfo `json:"clients"`     // Current connections
	MaxClients  int          `json:"max_clients"` // 0 means unlimited
	Running     bool         `json:"running"`
}

// ClientInfo is a snapshot of one connection.
type ClientInfo struct {
	Id          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Commands    uint64    `json:"commands"`
}

type ClientMetadata struct {
	Id          string
	RemoteAddr  string
	ConnectedAt time.Time
	Transport   Transport
	commands    atomic.Uint64
}

func (m *ClientMetadata) Info() ClientInfo {
	return ClientInfo{
		Id:          m.Id,
		RemoteAddr:  m.RemoteAddr,
		ConnectedAt: m.ConnectedAt,
		Commands:    m.commands.Load(),
	}
}

// Client is one open connection owned by a transport.
type Client interface {
	Send(proto.Response) error
	Meta() *ClientMetadata
	Close() error
}

func generateClientId(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
