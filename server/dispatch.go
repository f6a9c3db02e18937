package server

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/mbocsi/hostbridge/owner"
	"github.com/mbocsi/hostbridge/proto"
)

var ErrNoExecutor = errors.New("owner executor not configured")

// Dispatcher turns a Command into exactly one Response. Handler failures and
// panics never escape it.
type Dispatcher struct {
	registry *CommandRegistry
	executor *owner.Executor
	metrics  *Metrics
}

func NewDispatcher(registry *CommandRegistry, executor *owner.Executor, metrics *Metrics) *Dispatcher {
	return &Dispatcher{registry: registry, executor: executor, metrics: metrics}
}

func (d *Dispatcher) Registry() *CommandRegistry {
	return d.registry
}

func (d *Dispatcher) Dispatch(ctx context.Context, cmd proto.Command) (resp proto.Response) {
	start := time.Now()
	label := "unknown"

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Command handler panicked", "command", cmd.Name, "panic", r, "stack", string(debug.Stack()))
			resp = proto.Errorf("internal error executing %s: %v", cmd.Name, r)
		}
		d.metrics.observeCommand(label, resp.Status, time.Since(start))
	}()

	entry, ok := d.registry.Get(cmd.Name)
	if !ok {
		slog.Warn("Unknown command type", "command", cmd.Name)
		return proto.Errorf("Unknown command type: %s", cmd.Name)
	}
	label = entry.Name

	params := cmd.Params
	if params == nil {
		params = map[string]any{}
	}

	var (
		result map[string]any
		err    error
	)
	if entry.Mutating {
		if d.executor == nil {
			return proto.Failure(ErrNoExecutor)
		}
		result, err = owner.Call(ctx, d.executor, func() (map[string]any, error) {
			return entry.Handler(ctx, params)
		})
	} else {
		result, err = entry.Handler(ctx, params)
	}

	if err != nil {
		slog.Warn("Command failed", "command", cmd.Name, "mutating", entry.Mutating, "error", err.Error())
		var pe *owner.PanicError
		if errors.As(err, &pe) {
			slog.Error("Owner thread work panicked", "command", cmd.Name, "stack", string(pe.Stack))
		}
		return proto.Failure(err)
	}
	slog.Debug("Command executed", "command", cmd.Name, "mutating", entry.Mutating, "elapsed", time.Since(start))
	return proto.Success(result)
}

// Describe lists the registered commands for status endpoints.
func (d *Dispatcher) Describe() []map[string]any {
	entries := d.registry.List()
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{"name": e.Name, "mutating": e.Mutating})
	}
	return out
}
