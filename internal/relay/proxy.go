package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joeycumines/relayframe/internal/goroutineid"
)

// Proxy is what worker goroutines call instead of the host. Safe for
// concurrent use.
type Proxy struct {
	ch       *Channel
	owner    *goroutineid.Owner
	logger   *slog.Logger
	metrics  *Metrics
	onDefect func(error)
}

// NewProxy returns a proxy enqueueing onto ch. d may be nil, in which case
// re-entrant calls are not detected.
func NewProxy(ch *Channel, d *Dispatcher, opts ...Option) *Proxy {
	o := resolveOptions(opts)
	p := &Proxy{
		ch:      ch,
		logger:  o.logger,
		metrics: o.metrics,
	}
	if d != nil {
		p.owner = d.Owner()
	}
	return p
}

// Call runs fn with args on the host goroutine and returns its result,
// blocking the caller until the reply arrives.
//
// Errors: *HostCallError if the host logic failed, an error matching
// ErrChannelClosed if the channel was torn down before a reply, the context
// cause if ctx ended first, or ErrReentrantCall if invoked from the
// dispatcher goroutine.
func (p *Proxy) Call(ctx context.Context, fn string, args ...any) (any, error) {
	if p.owner != nil && p.owner.IsCurrent() {
		err := fmt.Errorf("%w: %s", ErrReentrantCall, fn)
		p.logger.Error("[Relay] host call from the dispatcher goroutine can never be serviced",
			"func", fn)
		p.metrics.request(outcomeReentrant)
		if p.onDefect != nil {
			p.onDefect(err)
		}
		return nil, err
	}

	req := NewRequest(Call{Func: fn, Args: args})
	if err := p.ch.Enqueue(req); err != nil {
		p.metrics.request(outcomeClosed)
		return nil, err
	}
	return p.wait(ctx, req)
}

func (p *Proxy) wait(ctx context.Context, req *Request) (any, error) {
	slot := req.reply.ch
	select {
	case r := <-slot:
		return r.Value, r.Err
	case <-p.ch.Done():
		// a reply may have raced the close; it wins
		select {
		case r := <-slot:
			return r.Value, r.Err
		default:
		}
		req.abandon()
		p.metrics.request(outcomeClosed)
		return nil, p.ch.Err()
	case <-ctx.Done():
		req.abandon()
		return nil, context.Cause(ctx)
	}
}
