package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/joeycumines/relayframe/internal/info"
)

// Pool is the fixed-size worker pool engine tasks run on.
//
// Executions register themselves for their whole duration; the pool cannot be
// resized while any are in flight.
type Pool struct {
	pool   *ants.Pool
	logger *slog.Logger

	mu     sync.Mutex
	active int
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger receiving worker panics and resizes.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool starts a pool of size workers. A size of zero or less means one
// worker per CPU. Unless built with the relayframe_unlimited_threads tag the
// size is clamped to runtime.NumCPU().
func NewPool(size int, opts ...PoolOption) (*Pool, error) {
	p := &Pool{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	pool, err := ants.NewPool(clampSize(size), ants.WithLogger(antsLogger{p.logger}))
	if err != nil {
		return nil, fmt.Errorf("engine: create pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

func clampSize(n int) int {
	cpus := runtime.NumCPU()
	if n <= 0 {
		return cpus
	}
	if n > cpus && !info.Features().UnlimitedThreads {
		return cpus
	}
	return n
}

// Size is the number of workers.
func (p *Pool) Size() int { return p.pool.Cap() }

// Running is the number of workers currently executing a task.
func (p *Pool) Running() int { return p.pool.Running() }

// Resize changes the number of workers, subject to the same clamping as
// NewPool. It fails with ErrPoolBusy while an execution is in flight.
func (p *Pool) Resize(size int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active > 0 {
		return ErrPoolBusy
	}
	if p.pool.IsClosed() {
		return ErrPoolClosed
	}
	n := clampSize(size)
	p.pool.Tune(n)
	p.logger.Debug("[Engine] pool resized", "size", n)
	return nil
}

// Release stops the workers. Tasks already running finish.
func (p *Pool) Release() { p.pool.Release() }

// begin marks an execution in flight until the returned func is called.
func (p *Pool) begin() func() {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
		})
	}
}

// run executes task(i) for i in [0, n) on the pool and waits for all of them.
// The first error is passed to cancel, which must cancel the context the
// tasks observe, and is returned. Tasks must not call run.
func (p *Pool) run(ctx context.Context, cancel context.CancelCauseFunc, n int, task func(i int) error) error {
	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	fail := func(err error) {
		once.Do(func() {
			first = err
			cancel(err)
		})
	}

	for i := 0; i < n && ctx.Err() == nil; i++ {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					fail(fmt.Errorf("engine: task panicked: %v", r))
				}
			}()
			if ctx.Err() != nil {
				return
			}
			if err := task(i); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			if errors.Is(err, ants.ErrPoolClosed) {
				err = ErrPoolClosed
			}
			fail(err)
		}
	}
	wg.Wait()

	if first == nil && ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return first
}

type antsLogger struct{ logger *slog.Logger }

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Warn("[Engine] pool: " + fmt.Sprintf(format, args...))
}
