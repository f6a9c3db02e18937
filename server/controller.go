package server

import (
	"log/slog"
	"sync"
)

// Controller holds the host integration's current bridge server. It replaces
// a process-wide server variable: StartServer always leaves a freshly started
// server behind (restarting a running one) and StopServer is idempotent.
type Controller struct {
	mu      sync.Mutex
	factory func() Transport
	current Transport
}

func NewController(factory func() Transport) *Controller {
	return &Controller{factory: factory}
}

func (c *Controller) StartServer() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		slog.Info("Server is already running, restarting")
		if err := c.current.Shutdown(); err != nil {
			slog.Warn("Error stopping previous server", "error", err)
		}
		c.current = nil
	}

	t := c.factory()
	if err := t.Start(); err != nil {
		return err
	}
	c.current = t
	return nil
}

func (c *Controller) StopServer() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil
	}
	err := c.current.Shutdown()
	c.current = nil
	slog.Info("Bridge server stopped")
	return err
}

// Current returns the running server, or nil.
func (c *Controller) Current() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
