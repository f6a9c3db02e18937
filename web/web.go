// Package web serves the bridge's status pages, JSON API and metrics.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mbocsi/hostbridge/scene"
	"github.com/mbocsi/hostbridge/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusSource describes the running bridge. *server.HostBridgeServer
// satisfies it.
type StatusSource interface {
	Transports() []server.TransportMetadata
	Dispatcher() *server.Dispatcher
}

type WebServer struct {
	source    StatusSource
	doc       *scene.Document
	gatherer  prometheus.Gatherer
	events    *server.Broker
	templates *Templates
	started   time.Time

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// NewWebServer builds the status server. A nil gatherer disables /metrics.
func NewWebServer(source StatusSource, doc *scene.Document, gatherer prometheus.Gatherer) *WebServer {
	return &WebServer{
		source:    source,
		doc:       doc,
		gatherer:  gatherer,
		templates: NewTemplates(),
		started:   time.Now(),
	}
}

// SetEvents enables the /api/events stream. Call it before Start.
func (w *WebServer) SetEvents(b *server.Broker) {
	w.events = b
}

func (w *WebServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", w.HandleHome)
	r.Get("/healthz", w.HandleHealth)
	r.Get("/api/transports", w.HandleTransports)
	r.Get("/api/commands", w.HandleCommands)
	r.Get("/api/scene", w.HandleScene)
	r.Get("/api/scene/objects/{name}", w.HandleObject)
	if w.events != nil {
		r.Get("/api/events", w.HandleEvents)
	}
	if w.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(w.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start listens on addr and serves in the background.
func (w *WebServer) Start(addr string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.srv != nil {
		return nil
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	// Request contexts end on Shutdown so open event streams return.
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           w.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	w.srv, w.listener = srv, l

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web server stopped", "addr", addr, "error", err)
		}
	}()
	slog.Info("Started web server", "addr", l.Addr().String())
	return nil
}

func (w *WebServer) ListenAddr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

func (w *WebServer) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	srv := w.srv
	w.srv, w.listener = nil, nil
	w.mu.Unlock()

	if srv == nil {
		return nil
	}
	slog.Info("Shutting down web server")
	return srv.Shutdown(ctx)
}
