// Package scripting wraps the sandboxed runtime that evaluates resolver
// scripts. Each call binds {context, currentValue, previousValue} and returns
// one scalar result of dynamic type.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	resolution "oee-platform/internal/resolution/domain"
)

// Call carries the fixed bindings a resolver script sees.
type Call struct {
	Context       any
	CurrentValue  any
	PreviousValue any
}

// Engine evaluates one script synchronously and returns its scalar result.
type Engine interface {
	Run(ctx context.Context, script string, call Call) (any, error)
}

const defaultTimeout = 5 * time.Second

// GojaEngine evaluates resolver scripts as JavaScript. A hung script is
// interrupted after the timeout and fails that single reading only.
type GojaEngine struct {
	timeout time.Duration
}

// Option configures the engine.
type Option func(*GojaEngine)

// WithTimeout overrides the per-call evaluation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *GojaEngine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// NewGojaEngine constructs the default script engine.
func NewGojaEngine(opts ...Option) *GojaEngine {
	engine := &GojaEngine{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Run evaluates the script with the call bindings. Each call gets a fresh VM
// so scripts cannot leak state into each other.
func (e *GojaEngine) Run(ctx context.Context, script string, call Call) (any, error) {
	if script == "" {
		return nil, fmt.Errorf("%w: empty script", resolution.ErrScript)
	}

	vm := goja.New()
	if err := vm.Set("context", call.Context); err != nil {
		return nil, fmt.Errorf("%w: bind context: %v", resolution.ErrScript, err)
	}
	if err := vm.Set("currentValue", call.CurrentValue); err != nil {
		return nil, fmt.Errorf("%w: bind currentValue: %v", resolution.ErrScript, err)
	}
	if err := vm.Set("previousValue", call.PreviousValue); err != nil {
		return nil, fmt.Errorf("%w: bind previousValue: %v", resolution.ErrScript, err)
	}

	timer := time.AfterFunc(e.timeout, func() {
		vm.Interrupt("evaluation timeout")
	})
	defer timer.Stop()

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < e.timeout {
		timer.Reset(time.Until(deadline))
	}

	value, err := vm.RunString(script)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("%w: interrupted: %v", resolution.ErrScript, interrupted.Value())
		}
		return nil, fmt.Errorf("%w: %v", resolution.ErrScript, err)
	}
	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}
	return value.Export(), nil
}
