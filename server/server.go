package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mbocsi/hostbridge/owner"
)

type Options struct {
	Addr            string        // TCP bridge address, e.g. "localhost:9876"
	WSAddr          string        // Optional WebSocket address; empty disables it
	MaxClients      int           // Per transport; 0 means DefaultMaxClients
	MaxMessageBytes int           // 0 means proto.DefaultMaxMessageBytes
	StopTimeout     time.Duration // Bounded wait for the accept loop on stop
	WriteTimeout    time.Duration // Per response write
	Advertise       bool          // Announce the bridge over mDNS
	Instance        string        // mDNS instance name, e.g. the host application name

	Registry *CommandRegistry // Optional (defaults to an empty registry)
	Executor *owner.Executor  // Required for mutating commands
	Metrics  *Metrics         // Optional
}

// HostBridgeServer is the host side of the bridge: a restartable TCP server
// plus any auxiliary transports, all feeding one dispatcher.
type HostBridgeServer struct {
	options     Options
	dispatcher  *Dispatcher
	coordinator *Coordinator
	controller  *Controller

	amu        sync.Mutex
	advertiser *Advertiser
}

func NewHostBridgeServer(opts Options) *HostBridgeServer {
	if opts.Registry == nil {
		opts.Registry = NewCommandRegistry()
	}
	if opts.MaxClients == 0 {
		opts.MaxClients = DefaultMaxClients
	}

	dispatcher := NewDispatcher(opts.Registry, opts.Executor, opts.Metrics)
	s := &HostBridgeServer{
		options:     opts,
		dispatcher:  dispatcher,
		coordinator: NewCoordinator(dispatcher),
	}
	s.controller = NewController(s.newTCPTransport)

	if opts.WSAddr != "" {
		ws := NewWSTransport(opts.WSAddr)
		ws.SetName("Bridge WebSocket server")
		ws.SetDescription("Command bridge, one command per text message")
		ws.SetMaxClients(opts.MaxClients)
		if opts.MaxMessageBytes > 0 {
			ws.SetMaxMessageBytes(int64(opts.MaxMessageBytes))
		}
		if opts.WriteTimeout > 0 {
			ws.SetWriteTimeout(opts.WriteTimeout)
		}
		ws.SetMetrics(opts.Metrics)
		s.coordinator.RegisterTransport(ws)
	}
	return s
}

func (s *HostBridgeServer) newTCPTransport() Transport {
	t := NewTCPTransport(s.options.Addr)
	t.SetName("Bridge TCP server")
	t.SetDescription("Command bridge, newline terminated JSON")
	t.SetMaxClients(s.options.MaxClients)
	if s.options.MaxMessageBytes > 0 {
		t.SetMaxMessageBytes(s.options.MaxMessageBytes)
	}
	if s.options.StopTimeout > 0 {
		t.SetStopTimeout(s.options.StopTimeout)
	}
	if s.options.WriteTimeout > 0 {
		t.SetWriteTimeout(s.options.WriteTimeout)
	}
	t.SetMetrics(s.options.Metrics)
	t.OnCommand(s.dispatcher.Dispatch)
	return t
}

// StartServer starts the TCP bridge, restarting it if it is already running.
func (s *HostBridgeServer) StartServer() error {
	s.stopAdvertising()
	if err := s.controller.StartServer(); err != nil {
		return err
	}
	if s.options.Advertise {
		s.advertise()
	}
	return nil
}

// StopServer stops the TCP bridge. Calling it when stopped does nothing.
func (s *HostBridgeServer) StopServer() error {
	s.stopAdvertising()
	return s.controller.StopServer()
}

// advertise failures are logged only; the bridge stays reachable by address.
func (s *HostBridgeServer) advertise() {
	bridge := s.Bridge()
	if bridge == nil {
		return
	}
	addr := bridge.ListenAddr()
	if addr == nil {
		return
	}
	instance := s.options.Instance
	if instance == "" {
		instance = "hostbridge"
	}
	a, err := Advertise(instance, addr, []string{"protocol=json", "transport=tcp"})
	if err != nil {
		slog.Warn("Could not advertise bridge", "addr", addr.String(), "error", err)
		return
	}
	s.amu.Lock()
	s.advertiser = a
	s.amu.Unlock()
}

func (s *HostBridgeServer) stopAdvertising() {
	s.amu.Lock()
	defer s.amu.Unlock()
	if err := s.advertiser.Shutdown(); err != nil {
		slog.Warn("Error stopping mDNS advertiser", "error", err)
	}
	s.advertiser = nil
}

// Bridge returns the running TCP transport, or nil.
func (s *HostBridgeServer) Bridge() *TCPTransport {
	t, _ := s.controller.Current().(*TCPTransport)
	return t
}

func (s *HostBridgeServer) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Transports describes the bridge and the auxiliary transports.
func (s *HostBridgeServer) Transports() []TransportMetadata {
	var metas []TransportMetadata
	if t := s.controller.Current(); t != nil {
		metas = append(metas, t.Meta())
	}
	for _, t := range s.coordinator.Transports {
		metas = append(metas, t.Meta())
	}
	return metas
}

// Run starts everything, blocks until ctx is done and then stops everything.
func (s *HostBridgeServer) Run(ctx context.Context) error {
	if err := s.StartServer(); err != nil {
		return err
	}
	defer s.StopServer()
	return s.coordinator.Start(ctx)
}
