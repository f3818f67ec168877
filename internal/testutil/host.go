package testutil

import (
	"fmt"
	"sync"

	"github.com/joeycumines/relayframe/internal/goroutineid"
	"github.com/joeycumines/relayframe/internal/relay"
)

// ScriptedHost is a relay.Host backed by Go functions. It records every call
// and the goroutine it ran on, so tests can assert the single-owner
// property.
type ScriptedHost struct {
	funcs map[string]func(args []any) (any, error)

	mu         sync.Mutex
	calls      []relay.Call
	goroutines map[int64]int
}

// NewScriptedHost returns an empty host.
func NewScriptedHost() *ScriptedHost {
	return &ScriptedHost{
		funcs:      make(map[string]func(args []any) (any, error)),
		goroutines: make(map[int64]int),
	}
}

// Define registers fn under name. Not safe to call while the host is in use.
func (h *ScriptedHost) Define(name string, fn func(args []any) (any, error)) *ScriptedHost {
	h.funcs[name] = fn
	return h
}

// Invoke implements relay.Host.
func (h *ScriptedHost) Invoke(call relay.Call) (any, error) {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.goroutines[goroutineid.Get()]++
	h.mu.Unlock()

	fn, ok := h.funcs[call.Func]
	if !ok {
		return nil, fmt.Errorf("function %q is not defined", call.Func)
	}
	return fn(call.Args)
}

// Calls returns a copy of every call received.
func (h *ScriptedHost) Calls() []relay.Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]relay.Call(nil), h.calls...)
}

// Goroutines returns the distinct goroutine ids Invoke ran on.
func (h *ScriptedHost) Goroutines() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int64, 0, len(h.goroutines))
	for id := range h.goroutines {
		ids = append(ids, id)
	}
	return ids
}

// Doubler is a host function doubling a single numeric argument, or each
// element of a []any argument.
func Doubler(args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("double: want 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			d, err := Doubler([]any{x})
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	case nil:
		return nil, nil
	case int:
		return v * 2, nil
	case int64:
		return v * 2, nil
	case float64:
		return v * 2, nil
	default:
		return nil, fmt.Errorf("double: unsupported %T", v)
	}
}
