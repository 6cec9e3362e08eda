package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Executor runs handlers with panic recovery and timing. It is the boundary
// that keeps a misbehaving action or constraint check from unwinding into
// the detection loop.
type Executor struct {
	panicHandler PanicHandler
	timeout      time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorPanicHandler sets the panic handler for the executor.
func WithExecutorPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// WithExecutorTimeout bounds every handler execution. Zero means no bound.
func WithExecutorTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		if timeout >= 0 {
			e.timeout = timeout
		}
	}
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a handler with the given event and returns the result.
// The executor's timeout, if any, is applied to ctx.
func (e *Executor) Execute(ctx context.Context, event any, handler Handler) Result {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.execute(ctx, event, handler)
}

func (e *Executor) execute(ctx context.Context, event any, handler Handler) (result Result) {
	select {
	case <-ctx.Done():
		return Result{
			Error:   ctx.Err(),
			Skipped: true,
		}
	default:
	}

	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()

			result.Success = false
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			if e.panicHandler != nil {
				func() {
					// A panicking panic handler must not escape either.
					defer func() { _ = recover() }()
					e.panicHandler(event, r, stack)
				}()
			}
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	return result
}

// ExecuteAll runs handlers one after another in slice order and returns one
// result per handler. A failed handler does not stop the remaining ones;
// a cancelled context marks the rest as skipped.
func (e *Executor) ExecuteAll(ctx context.Context, event any, handlers []Handler) []Result {
	results := make([]Result, len(handlers))

	for i, handler := range handlers {
		select {
		case <-ctx.Done():
			for j := i; j < len(handlers); j++ {
				results[j] = Result{
					Error:   ctx.Err(),
					Skipped: true,
				}
			}
			return results
		default:
		}

		results[i] = e.Execute(ctx, event, handler)
	}

	return results
}
