package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/jsrun/internal/shared/id"
)

const (
	snippetName    = "snippet.js"
	timeoutMessage = "execution timeout exceeded"
)

// Executor compiles and runs snippets, one fresh context per call.
type Executor struct {
	builder  *Builder
	timeout  time.Duration
	sem      *semaphore.Weighted
	logger   *zap.Logger
	observer Observer
}

// Option customises an Executor.
type Option func(*Executor)

// WithTimeout interrupts executions running longer than d. Zero disables the
// limit and a non-terminating snippet then runs forever.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithMaxConcurrent caps simultaneous executions. n <= 0 means unbounded and
// n == 1 serialises every execution in the process.
func WithMaxConcurrent(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithLogger sets the executor's logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithObserver reports execution outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// NewExecutor creates an executor that builds its contexts with b.
func NewExecutor(b *Builder, opts ...Option) *Executor {
	e := &Executor{
		builder:  b,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs source in a new context. On an execution failure it returns
// both the partial result (logs included) and an *ExecutionError. Other
// errors mean the snippet never ran.
func (e *Executor) Execute(ctx context.Context, source string) (*Result, error) {
	release, err := e.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	c, err := e.Build()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return e.Run(c, source)
}

// Acquire waits for an execution slot. The returned func releases it.
func (e *Executor) Acquire(ctx context.Context) (func(), error) {
	if e.sem == nil {
		return func() {}, nil
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionSlot, err)
	}
	return func() { e.sem.Release(1) }, nil
}

// Build creates a fresh evaluation context.
func (e *Executor) Build() (*Context, error) {
	c, err := e.builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluation context: %w", err)
	}
	return c, nil
}

// Run executes source against an already built context. The context is
// consumed and cannot be reused.
func (e *Executor) Run(c *Context, source string) (*Result, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &Result{ID: id.NewExecutionID()}

	value, err := e.evaluate(c, source)
	res.Duration = time.Since(start)

	if err != nil {
		execErr := describe(err)
		c.collector.AppendError(execErr.Error())
		res.Logs = c.collector.Records()

		status := StatusError
		if execErr.Timeout {
			status = StatusTimeout
		}
		e.observer.ObserveExecution(status, res.Duration)
		e.logger.Debug("snippet failed",
			zap.String("execution_id", res.ID.String()),
			zap.Duration("duration", res.Duration),
			zap.String("error", execErr.Message))
		return res, execErr
	}

	res.Value = value
	res.Logs = c.collector.Records()
	e.observer.ObserveExecution(StatusOK, res.Duration)
	e.logger.Debug("snippet completed",
		zap.String("execution_id", res.ID.String()),
		zap.Duration("duration", res.Duration),
		zap.Int("logs", len(res.Logs)))
	return res, nil
}

// evaluate compiles, runs and serialises. Panics from host code are
// converted to errors so a single snippet cannot take the process down.
func (e *Executor) evaluate(c *Context, source string) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during snippet execution",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	vm := c.vm
	prog, err := goja.Compile(snippetName, source, false)
	if err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt(timeoutMessage)
		})
		defer timer.Stop()
	}

	val, err := vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	return serialize(c.stringify, val)
}

// serialize renders v with the runtime's intrinsic JSON.stringify, so a
// snippet that rebinds JSON cannot change the response. Values with no JSON
// form (undefined, functions, symbols) become null.
func serialize(stringify goja.Callable, v goja.Value) (json.RawMessage, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return json.RawMessage("null"), nil
	}

	out, err := stringify(goja.Undefined(), v)
	if err != nil {
		return nil, err
	}
	if out == nil || goja.IsUndefined(out) {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(out.String()), nil
}

// describe renders any failure from evaluate as an ExecutionError.
func describe(err error) *ExecutionError {
	var (
		ex        *goja.Exception
		interrupt *goja.InterruptedError
		syntax    *goja.CompilerSyntaxError
	)

	switch {
	case errors.As(err, &interrupt):
		return &ExecutionError{
			Message: fmt.Sprint(interrupt.Value()),
			Stack:   interrupt.String(),
			Timeout: interrupt.Value() == timeoutMessage,
		}
	case errors.As(err, &ex):
		return describeException(ex)
	case errors.As(err, &syntax):
		return &ExecutionError{Message: syntax.Error()}
	default:
		return &ExecutionError{Message: err.Error()}
	}
}

// describeException prefers the thrown value's message and stack properties
// and falls back to its string form and the VM's trace.
func describeException(ex *goja.Exception) (out *ExecutionError) {
	defer func() {
		// property getters on the thrown value may themselves throw
		if recover() != nil {
			out = &ExecutionError{Message: ex.Error()}
		}
	}()

	v := ex.Value()
	out = &ExecutionError{Stack: ex.String()}
	if v == nil {
		out.Message = ex.Error()
		return out
	}
	out.Message = v.String()

	obj, ok := v.(*goja.Object)
	if !ok {
		return out
	}
	if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) && !goja.IsNull(msg) {
		out.Message = msg.String()
	}
	if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) && stack.String() != "" {
		out.Stack = stack.String()
	}
	return out
}
