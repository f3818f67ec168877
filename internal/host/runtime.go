// Package host owns the JavaScript runtime that user callbacks run in.
//
// A goja.Runtime is not goroutine-safe. A Runtime is bound to the goroutine
// that created it and refuses to run on any other; worker goroutines reach
// it through a relay.Proxy instead.
//
// Scripts expose callbacks either as global functions or through the native
// module:
//
//	const rf = require('relayframe');
//	rf.register('double', xs => xs.map(x => x * 2));
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/relayframe/internal/goroutineid"
	"github.com/joeycumines/relayframe/internal/info"
	"github.com/joeycumines/relayframe/internal/relay"
)

var (
	// ErrNotOwner is returned when the runtime is used from a goroutine other
	// than the one that created it.
	ErrNotOwner = errors.New("host: runtime used from a goroutine that does not own it")

	// ErrUnknownFunction is returned by Invoke for a name that is neither
	// registered nor a global function.
	ErrUnknownFunction = errors.New("host: unknown function")
)

// ScriptError is a JavaScript exception. Stack holds the exception with its
// JavaScript stack, as goja formats it.
type ScriptError struct {
	Message string
	Stack   string
}

func (e *ScriptError) Error() string { return e.Message }

// StackTrace implements relay.StackTracer.
func (e *ScriptError) StackTrace() string { return e.Stack }

var _ relay.StackTracer = (*ScriptError)(nil)

// Runtime is a goja VM owned by a single goroutine. It implements
// relay.Host.
type Runtime struct {
	vm       *goja.Runtime
	registry *require.Registry
	owner    goroutineid.Owner
	logger   *slog.Logger
	pool     info.Sizer
	funcs    map[string]goja.Callable
}

var _ relay.Host = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger for script console output and runtime events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithPool lets scripts query the worker count via threadPoolSize().
func WithPool(pool info.Sizer) Option {
	return func(r *Runtime) { r.pool = pool }
}

// New creates a runtime owned by the calling goroutine.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		vm:       goja.New(),
		registry: require.NewRegistry(),
		logger:   slog.Default(),
		funcs:    make(map[string]goja.Callable),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.owner.Claim()

	r.registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(slogPrinter{r.logger}))
	r.registry.RegisterNativeModule(info.PackageName(), r.requireModule)
	r.registry.Enable(r.vm)
	console.Enable(r.vm)

	r.logger.Debug("[Host] runtime created", "module", info.PackageName(), "goroutine", r.owner.ID())
	return r, nil
}

// LoadScript evaluates code. name is used in stack traces.
func (r *Runtime) LoadScript(name, code string) error {
	if !r.owner.IsCurrent() {
		return ErrNotOwner
	}
	if _, err := r.vm.RunScript(name, code); err != nil {
		return fmt.Errorf("host: load %s: %w", name, scriptError(err))
	}
	r.logger.Debug("[Host] script loaded", "name", name, "functions", len(r.funcs))
	return nil
}

// Register exposes fn to Invoke under name, replacing any previous
// registration.
func (r *Runtime) Register(name string, fn goja.Callable) error {
	if !r.owner.IsCurrent() {
		return ErrNotOwner
	}
	if name == "" || fn == nil {
		return errors.New("host: register requires a name and a function")
	}
	r.funcs[name] = fn
	return nil
}

// Functions lists registered function names, sorted.
func (r *Runtime) Functions() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke calls a registered function, or failing that a global function,
// with call.Args. Slices become JavaScript arrays; the result is exported
// back to Go values.
func (r *Runtime) Invoke(call relay.Call) (any, error) {
	if !r.owner.IsCurrent() {
		return nil, ErrNotOwner
	}
	fn, ok := r.funcs[call.Func]
	if !ok {
		fn, ok = goja.AssertFunction(r.vm.Get(call.Func))
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, call.Func)
	}

	args := make([]goja.Value, len(call.Args))
	for i, a := range call.Args {
		args[i] = r.toValue(a)
	}
	res, err := fn(goja.Undefined(), args...)
	if err != nil {
		return nil, scriptError(err)
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	return res.Export(), nil
}

func (r *Runtime) toValue(v any) goja.Value {
	if items, ok := v.([]any); ok {
		values := make([]any, len(items))
		for i, item := range items {
			values[i] = r.toValue(item)
		}
		return r.vm.NewArray(values...)
	}
	return r.vm.ToValue(v)
}

func scriptError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &ScriptError{Message: ex.Value().String(), Stack: ex.String()}
	}
	return err
}

// requireModule is the native module scripts load with
// require(info.PackageName()).
func (r *Runtime) requireModule(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	_ = exports.Set("version", info.Version)
	_ = exports.Set("features", func() []string {
		return info.Features().Names()
	})
	_ = exports.Set("threadPoolSize", func() int {
		if r.pool == nil {
			return 0
		}
		return r.pool.Size()
	})
	_ = exports.Set("register", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("register(%s): second argument must be a function", name))
		}
		if err := r.Register(name, fn); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})
}

type slogPrinter struct{ logger *slog.Logger }

func (p slogPrinter) Log(s string)   { p.logger.Info("[Script] " + s) }
func (p slogPrinter) Warn(s string)  { p.logger.Warn("[Script] " + s) }
func (p slogPrinter) Error(s string) { p.logger.Error("[Script] " + s) }
