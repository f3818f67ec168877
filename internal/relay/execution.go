package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of an Execution.
type State int32

const (
	StateIdle State = iota
	StateSubmitted
	StateDispatching
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitted:
		return "submitted"
	case StateDispatching:
		return "dispatching"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether s is Completed or Failed.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Job is the engine work of one execution. It runs on a driver goroutine and
// must route every host call through proxy. It must honour ctx.
type Job[T any] func(ctx context.Context, proxy *Proxy) (T, error)

// Execution owns the channel, dispatcher and proxy of one query run.
type Execution struct {
	id         uuid.UUID
	ch         *Channel
	dispatcher *Dispatcher
	proxy      *Proxy
	logger     *slog.Logger
	metrics    *Metrics
	onState    func(State)

	state     atomic.Int32
	defectMu  sync.Mutex
	defectErr error
}

// NewExecution prepares an execution servicing host. It does nothing until
// passed to Run.
func NewExecution(host Host, opts ...Option) *Execution {
	o := resolveOptions(opts)
	id := uuid.New()
	logger := o.logger.With("execution", id.String())
	opts = append(opts[:len(opts):len(opts)], WithLogger(logger))

	e := &Execution{
		id:      id,
		ch:      NewChannel(),
		logger:  logger,
		metrics: o.metrics,
		onState: o.onState,
	}
	e.dispatcher = NewDispatcher(e.ch, host, opts...)
	e.proxy = NewProxy(e.ch, e.dispatcher, opts...)
	e.proxy.onDefect = e.recordDefect
	return e
}

// ID identifies the execution in logs.
func (e *Execution) ID() uuid.UUID { return e.id }

// State returns the current lifecycle state.
func (e *Execution) State() State { return State(e.state.Load()) }

// Proxy returns the execution's worker-side proxy.
func (e *Execution) Proxy() *Proxy { return e.proxy }

// Served returns the number of requests serviced so far.
func (e *Execution) Served() int64 { return e.dispatcher.Served() }

func (e *Execution) transition(from, to State) bool {
	if !e.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if e.onState != nil {
		e.onState(to)
	}
	return true
}

func (e *Execution) recordDefect(err error) {
	e.defectMu.Lock()
	if e.defectErr == nil {
		e.defectErr = err
	}
	e.defectMu.Unlock()
}

func (e *Execution) defect() error {
	e.defectMu.Lock()
	defer e.defectMu.Unlock()
	return e.defectErr
}

// Execute runs job under a fresh Execution. See Run.
func Execute[T any](ctx context.Context, host Host, job Job[T], opts ...Option) (T, error) {
	return Run(ctx, NewExecution(host, opts...), job)
}

// Run starts job on a driver goroutine and services host calls on the
// calling goroutine, which must own the host runtime, until job returns.
//
// It returns once the job has finished and every request it issued has been
// answered. The error is the first one observed: cancellation of ctx, the
// job's error, a job panic, or a re-entrant host call, which fails the
// execution even if the job recovered from it. The channel is always closed
// on return, so stray workers observe ErrChannelClosed instead of hanging.
func Run[T any](ctx context.Context, e *Execution, job Job[T]) (T, error) {
	var zero T
	if !e.transition(StateIdle, StateSubmitted) {
		return zero, ErrExecutionReused
	}
	start := time.Now()

	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		result T
		jobErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				jobErr = fmt.Errorf("relay: job panicked: %v", p)
			}
		}()
		result, jobErr = job(jobCtx, e.proxy)
	}()

	e.transition(StateSubmitted, StateDispatching)
	err := e.dispatcher.Run(ctx, done)
	if err != nil {
		// stop the job and release any worker still waiting on a reply
		cancel(err)
		e.ch.Close(err)
		<-done
	}

	if err == nil {
		err = jobErr
	}
	if err == nil {
		err = e.defect()
	}

	if err != nil {
		failed := e.ch.Close(err)
		e.finish(StateFailed)
		e.logger.Warn("[Relay] execution failed",
			"served", e.Served(),
			"abandoned", failed,
			"elapsed", time.Since(start),
			"error", err)
		return zero, err
	}

	e.ch.Close(errCompleted)
	e.finish(StateCompleted)
	e.logger.Debug("[Relay] execution completed",
		"served", e.Served(),
		"elapsed", time.Since(start))
	return result, nil
}

func (e *Execution) finish(s State) {
	e.transition(StateDispatching, s)
	e.metrics.execution(s)
}
