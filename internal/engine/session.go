package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeycumines/relayframe/internal/relay"
)

// DefaultChunkSize is the number of rows per elementwise task.
const DefaultChunkSize = 1024

// Session binds a pool and, optionally, a host runtime. Queries run through
// Select and GroupBy. A session is safe for concurrent use, but the host is
// only ever invoked on the goroutine that called Select or Agg, which must
// own it.
type Session struct {
	pool      *Pool
	host      relay.Host
	chunkSize int
	logger    *slog.Logger
	relayOpts []relay.Option
}

// Option configures a Session.
type Option func(*Session)

// WithHost sets the host runtime Map, Apply and host() formulas call.
func WithHost(h relay.Host) Option {
	return func(s *Session) { s.host = h }
}

// WithChunkSize sets the rows per elementwise task. Values below one are
// ignored.
func WithChunkSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithLogger sets the logger for query execution events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRelayOptions passes opts to every execution, e.g. relay.WithMetrics.
func WithRelayOptions(opts ...relay.Option) Option {
	return func(s *Session) { s.relayOpts = append(s.relayOpts, opts...) }
}

// NewSession returns a session running tasks on pool.
func NewSession(pool *Pool, opts ...Option) *Session {
	s := &Session{
		pool:      pool,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Pool() *Pool { return s.pool }

// Select evaluates exprs against df and returns a frame with one column per
// expression. Scalar results are broadcast to the frame height; if every
// result is scalar the frame has one row.
func (s *Session) Select(ctx context.Context, df *DataFrame, exprs ...Expr) (*DataFrame, error) {
	if err := s.check(df, exprs); err != nil {
		return nil, err
	}
	return s.execute(ctx, "select", exprs, func(ec *evalContext) (*DataFrame, error) {
		vecs, err := s.evaluate(ec, df, exprs)
		if err != nil {
			return nil, err
		}
		return frameFromVectors(exprs, vecs)
	})
}

// check rejects queries that cannot succeed before anything runs.
func (s *Session) check(df *DataFrame, exprs []Expr) error {
	for _, e := range exprs {
		if err := e.valid(); err != nil {
			return err
		}
		for _, name := range e.columns() {
			if _, err := df.Column(name); err != nil {
				return fmt.Errorf("%s: %w", e, err)
			}
		}
		if s.host == nil && e.needsHost() {
			return fmt.Errorf("%w: %s", ErrNoHost, e)
		}
	}
	return nil
}

// execute runs fn inside a relay execution, servicing host calls on the
// calling goroutine until fn returns.
func (s *Session) execute(ctx context.Context, op string, exprs []Expr, fn func(ec *evalContext) (*DataFrame, error)) (*DataFrame, error) {
	done := s.pool.begin()
	defer done()

	host := s.host
	if host == nil {
		host = relay.HostFunc(func(relay.Call) (any, error) { return nil, ErrNoHost })
	}

	start := time.Now()
	df, err := relay.Execute(ctx, host, func(ctx context.Context, proxy *relay.Proxy) (*DataFrame, error) {
		ctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		ec := newEvalContext(ctx, proxy)
		ec.cancel = cancel
		if err := ec.prepare(exprs); err != nil {
			return nil, err
		}
		return fn(ec)
	}, s.relayOpts...)
	if err != nil {
		s.logger.Debug("[Engine] query failed", "op", op, "duration", time.Since(start), "error", err)
		return nil, err
	}
	s.logger.Debug("[Engine] query finished", "op", op, "duration", time.Since(start))
	return df, nil
}

type task struct {
	expr           int
	offset, length int
}

// evaluate computes every expression over df on the pool. Elementwise
// expressions over columns are split into chunks of s.chunkSize rows.
func (s *Session) evaluate(ec *evalContext, df *DataFrame, exprs []Expr) ([]vector, error) {
	height := df.Height()
	var tasks []task
	chunks := make([]int, len(exprs))
	for i, e := range exprs {
		if e.elementwise() && len(e.columns()) > 0 && height > s.chunkSize {
			for off := 0; off < height; off += s.chunkSize {
				tasks = append(tasks, task{expr: i, offset: off, length: min(s.chunkSize, height-off)})
				chunks[i]++
			}
			continue
		}
		tasks = append(tasks, task{expr: i, length: height})
		chunks[i] = 1
	}
	s.logger.Debug("[Engine] evaluating", "exprs", len(exprs), "rows", height, "tasks", len(tasks))

	results := make([]vector, len(tasks))
	err := s.pool.run(ec.ctx, ec.cancel, len(tasks), func(i int) error {
		t := tasks[i]
		in := df
		if chunks[t.expr] > 1 {
			in = df.Slice(t.offset, t.length)
		}
		v, err := exprs[t.expr].n.eval(ec, in)
		if err != nil {
			return err
		}
		results[i] = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	vecs := make([]vector, len(exprs))
	for i, t := range tasks {
		if chunks[t.expr] == 1 {
			vecs[t.expr] = results[i]
			continue
		}
		// chunked expressions read a column, so every chunk is full length
		vecs[t.expr].values = append(vecs[t.expr].values, results[i].values...)
	}
	return vecs, nil
}

// frameFromVectors names and broadcasts evaluation results into a frame.
func frameFromVectors(exprs []Expr, vecs []vector) (*DataFrame, error) {
	height, err := broadcastLen(vecs...)
	if err != nil {
		return nil, err
	}
	if height < 0 {
		height = 1
	}
	cols := make([]*Series, len(exprs))
	for i, e := range exprs {
		values := vecs[i].values
		if vecs[i].scalar {
			values = make([]any, height)
			for j := range values {
				values[j] = vecs[i].values[0]
			}
		}
		col, err := NewSeries(e.Name(), values)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return NewDataFrame(cols...)
}
