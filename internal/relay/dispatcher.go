package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/joeycumines/relayframe/internal/goroutineid"
)

// Host runs host-defined logic. Invoke is only ever called from the
// goroutine running the dispatcher, which must be the goroutine owning the
// host runtime.
type Host interface {
	Invoke(call Call) (any, error)
}

// HostFunc adapts a function to Host.
type HostFunc func(call Call) (any, error)

// Invoke calls f.
func (f HostFunc) Invoke(call Call) (any, error) { return f(call) }

// Dispatcher services a Channel on the host-owning goroutine.
type Dispatcher struct {
	ch      *Channel
	host    Host
	logger  *slog.Logger
	metrics *Metrics

	owner   goroutineid.Owner
	running atomic.Bool
	served  atomic.Int64
}

// NewDispatcher returns a dispatcher draining ch into host.
func NewDispatcher(ch *Channel, host Host, opts ...Option) *Dispatcher {
	o := resolveOptions(opts)
	return &Dispatcher{
		ch:      ch,
		host:    host,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Run services requests on the calling goroutine until done is closed, the
// channel is closed, or ctx is cancelled. When done closes, requests already
// queued are serviced before Run returns nil, since their workers may be
// blocked on them.
//
// Run never waits on anything but the channel, done and ctx, so it cannot
// be starved by engine progress.
func (d *Dispatcher) Run(ctx context.Context, done <-chan struct{}) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrDispatcherRunning
	}
	d.owner.Claim()
	defer func() {
		d.owner.Release()
		d.running.Store(false)
	}()

	for {
		d.drain()
		select {
		case <-d.ch.Wake():
		case <-done:
			d.drain()
			return nil
		case <-d.ch.Done():
			return d.ch.Err()
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
}

// Served returns the number of requests this dispatcher has replied to.
func (d *Dispatcher) Served() int64 { return d.served.Load() }

// Owner exposes the goroutine currently running the loop, used by proxies to
// reject re-entrant calls.
func (d *Dispatcher) Owner() *goroutineid.Owner { return &d.owner }

func (d *Dispatcher) drain() {
	d.metrics.depth(d.ch.Len())
	for {
		r, ok := d.ch.TryDequeue()
		if !ok {
			return
		}
		d.serve(r)
	}
}

func (d *Dispatcher) serve(r *Request) {
	r.claim()
	debugAssertOwner(&d.owner, "host call")

	if r.Abandoned() {
		d.served.Add(1)
		d.metrics.request(outcomeCancelled)
		r.reply.put(Reply{Err: context.Canceled})
		return
	}

	start := time.Now()
	value, err := d.invoke(r.Call)
	d.metrics.hostCall(time.Since(start))
	if err != nil {
		err = &HostCallError{Func: r.Call.Func, Request: r.ID, Err: err}
		d.metrics.request(outcomeHostError)
		attrs := []any{"request", r.ID.String(), "func", r.Call.Func, "error", err}
		var st StackTracer
		if errors.As(err, &st) {
			attrs = append(attrs, "stack", st.StackTrace())
		}
		d.logger.Debug("[Relay] host call failed", attrs...)
	} else {
		d.metrics.request(outcomeOK)
	}
	d.served.Add(1)
	r.reply.put(Reply{Value: value, Err: err})
}

// invoke converts a panicking host into an error so one bad callback cannot
// take down the owning goroutine.
func (d *Dispatcher) invoke(call Call) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return d.host.Invoke(call)
}
