// Package owner runs work on the host's single privileged thread.
//
// Any goroutine may submit work with Call; the work is queued FIFO and executed
// one item at a time either by Run, which pins itself to an OS thread, or by a
// host event loop that calls RunPending from the thread it already owns.
package owner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

const DefaultQueueSize = 64

var (
	ErrClosed  = errors.New("owner executor is closed")
	ErrRunning = errors.New("owner executor is already running")
)

// PanicError is returned to the caller when submitted work panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic on owner thread: %v", e.Value)
}

type task struct {
	fn      func()
	claimed atomic.Bool // set once by whichever side gets to it first: the runner or an abandoning caller
	done    chan struct{}
}

// Executor is a bounded FIFO work queue drained on the owner thread.
type Executor struct {
	queue   chan *task
	closed  chan struct{}
	once    sync.Once
	running atomic.Bool

	// execMu keeps work serialized when both Run and RunPending are in use.
	execMu sync.Mutex

	executed atomic.Uint64
}

func NewExecutor(queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Executor{
		queue:  make(chan *task, queueSize),
		closed: make(chan struct{}),
	}
}

// Run consumes the queue on the calling goroutine, locked to its OS thread,
// until ctx is cancelled or Close is called.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	slog.Debug("Owner thread started")
	defer slog.Debug("Owner thread stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.closed:
			return nil
		case t := <-e.queue:
			e.execute(t)
		}
	}
}

// RunPending executes the work queued at the time of the call on the calling
// goroutine and returns how many items ran. Hosts with their own event loop
// call it from an idle callback instead of using Run.
func (e *Executor) RunPending() int {
	n := 0
	for pending := len(e.queue); pending > 0; pending-- {
		select {
		case t := <-e.queue:
			if e.execute(t) {
				n++
			}
		default:
			return n
		}
	}
	return n
}

// Close stops Run and rejects further submissions. Work already queued but not
// started is abandoned and its callers receive ErrClosed.
func (e *Executor) Close() {
	e.once.Do(func() { close(e.closed) })
}

// Len reports the number of queued items.
func (e *Executor) Len() int {
	return len(e.queue)
}

// Executed reports how many work items have completed.
func (e *Executor) Executed() uint64 {
	return e.executed.Load()
}

func (e *Executor) execute(t *task) bool {
	if !t.claimed.CompareAndSwap(false, true) {
		return false // abandoned by its caller
	}
	e.execMu.Lock()
	defer e.execMu.Unlock()
	defer close(t.done)
	t.fn()
	e.executed.Add(1)
	return true
}

// submit queues fn and waits for it. Once the runner has claimed the task the
// wait ignores ctx: started work always finishes and reports back.
func (e *Executor) submit(ctx context.Context, fn func()) error {
	t := &task{fn: fn, done: make(chan struct{})}

	select {
	case <-e.closed:
		return ErrClosed
	default:
	}

	select {
	case e.queue <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.closed:
		return ErrClosed
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		if t.claimed.CompareAndSwap(false, true) {
			return ctx.Err()
		}
	case <-e.closed:
		if t.claimed.CompareAndSwap(false, true) {
			return ErrClosed
		}
	}
	<-t.done
	return nil
}

// Call runs fn on the owner thread and returns its result. Panics inside fn are
// recovered and returned as *PanicError.
func Call[T any](ctx context.Context, e *Executor, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	submitErr := e.submit(ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r, Stack: debug.Stack()}
			}
		}()
		result, err = fn()
	})
	if submitErr != nil {
		var zero T
		return zero, submitErr
	}
	return result, err
}

// Do is Call for work without a result.
func Do(ctx context.Context, e *Executor, fn func() error) error {
	_, err := Call(ctx, e, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
