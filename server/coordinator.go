package server

import (
	"context"
	"fmt"
	"log/slog"
)

// Coordinator wires transports to the dispatcher and owns their lifetime.
type Coordinator struct {
	Dispatcher *Dispatcher
	Transports []Transport
}

func NewCoordinator(dispatcher *Dispatcher) *Coordinator {
	return &Coordinator{Dispatcher: dispatcher}
}

func (c *Coordinator) RegisterTransport(t Transport) {
	t.OnCommand(c.Dispatcher.Dispatch)
	c.Transports = append(c.Transports, t)
}

// Start starts every transport, blocks until ctx is done, then shuts them all
// down. If a transport fails to start, the ones already started are stopped.
func (c *Coordinator) Start(ctx context.Context) error {
	for i, t := range c.Transports {
		if err := t.Start(); err != nil {
			for _, started := range c.Transports[:i] {
				started.Shutdown()
			}
			return fmt.Errorf("start %s transport: %w", t.Meta().Protocol, err)
		}
	}

	<-ctx.Done()
	slog.Info("Shutting down transports")
	c.Shutdown()
	return nil
}

func (c *Coordinator) Shutdown() {
	for _, t := range c.Transports {
		if err := t.Shutdown(); err != nil {
			slog.Error("There was an error when shutting down transport", "protocol", t.Meta().Protocol, "error", err.Error())
		}
	}
}
