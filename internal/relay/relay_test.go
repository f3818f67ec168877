package relay_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/relayframe/internal/goroutineid"
	"github.com/joeycumines/relayframe/internal/relay"
	"github.com/joeycumines/relayframe/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doublingHost() *testutil.ScriptedHost {
	return testutil.NewScriptedHost().Define("double", testutil.Doubler)
}

// fanOut runs fn(i) for i in [0,n) on separate goroutines and waits.
func fanOut(n int, fn func(i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(i)
		}()
	}
	wg.Wait()
}

func TestExecute_DoublesByPosition(t *testing.T) {
	host := doublingHost()
	input := []int64{1, 2, 3}

	got, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) ([]int64, error) {
		out := make([]int64, len(input))
		errs := make([]error, len(input))
		fanOut(len(input), func(i int) {
			v, err := p.Call(ctx, "double", input[i])
			if err != nil {
				errs[i] = err
				return
			}
			out[i] = v.(int64)
		})
		return out, errors.Join(errs...)
	})
	require.NoError(t, err)
	require.Equal(t, []int64{2, 4, 6}, got)
}

func TestExecute_HundredSimultaneousRequests(t *testing.T) {
	host := doublingHost()
	const n = 100

	got, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) (map[int]int, error) {
		var mu sync.Mutex
		results := make(map[int]int, n)
		var firstErr error
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				v, err := p.Call(ctx, "double", i)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				results[i] = v.(int)
			}()
		}
		close(start)
		wg.Wait()
		return results, firstErr
	})
	require.NoError(t, err)
	require.Len(t, got, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, i*2, got[i], "payload %d", i)
	}
}

func TestExecute_NoCrossRequestMixing(t *testing.T) {
	host := testutil.NewScriptedHost().Define("echo", func(args []any) (any, error) {
		return fmt.Sprintf("reply:%v", args[0]), nil
	})
	const n = 64

	mismatches, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) (int, error) {
		var mu sync.Mutex
		bad := 0
		fanOut(n, func(i int) {
			for j := 0; j < 10; j++ {
				tag := fmt.Sprintf("%d/%d", i, j)
				v, err := p.Call(ctx, "echo", tag)
				mu.Lock()
				if err != nil || v != "reply:"+tag {
					bad++
				}
				mu.Unlock()
			}
		})
		return bad, nil
	})
	require.NoError(t, err)
	require.Zero(t, mismatches)
	require.Len(t, host.Calls(), n*10)
}

func TestExecute_HostRunsOnCallingGoroutine(t *testing.T) {
	host := doublingHost()
	caller := goroutineid.Get()

	_, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) (struct{}, error) {
		var firstErr error
		var mu sync.Mutex
		fanOut(16, func(i int) {
			if _, err := p.Call(ctx, "double", i); err != nil {
				mu.Lock()
				firstErr = err
				mu.Unlock()
			}
		})
		return struct{}{}, firstErr
	})
	require.NoError(t, err)
	require.Equal(t, []int64{caller}, host.Goroutines())
}

func TestExecute_ConcurrentProducersServicedExactlyOnce(t *testing.T) {
	for _, workers := range []int{2, 8, 64} {
		t.Run(fmt.Sprint(workers), func(t *testing.T) {
			const perWorker = 25
			// only ever touched on the dispatcher goroutine
			serviced := make(map[string]int)
			host := relay.HostFunc(func(call relay.Call) (any, error) {
				key := call.Args[0].(string)
				serviced[key]++
				return key, nil
			})

			_, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) (struct{}, error) {
				var mu sync.Mutex
				var firstErr error
				fanOut(workers, func(w int) {
					for i := 0; i < perWorker; i++ {
						key := fmt.Sprintf("%d-%d", w, i)
						v, err := p.Call(ctx, "record", key)
						if err == nil && v != key {
							err = fmt.Errorf("got %v for %s", v, key)
						}
						if err != nil {
							mu.Lock()
							firstErr = err
							mu.Unlock()
						}
					}
				})
				return struct{}{}, firstErr
			})
			require.NoError(t, err)
			require.Len(t, serviced, workers*perWorker)
			for key, n := range serviced {
				require.Equal(t, 1, n, key)
			}
		})
	}
}

func TestExecute_HostErrorFailsOnlyItsBranch(t *testing.T) {
	boom := errors.New("boom")
	host := doublingHost().Define("explode", func([]any) (any, error) { return nil, boom })

	results := make([]any, 3)
	errs := make([]error, 3)
	_, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) (struct{}, error) {
		calls := []string{"double", "explode", "double"}
		fanOut(len(calls), func(i int) {
			results[i], errs[i] = p.Call(ctx, calls[i], int64(i+1))
		})
		for _, err := range errs {
			if err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})

	var hce *relay.HostCallError
	require.ErrorAs(t, err, &hce)
	require.Equal(t, "explode", hce.Func)
	require.ErrorIs(t, err, boom)

	require.NoError(t, errs[0])
	require.NoError(t, errs[2])
	require.Equal(t, int64(2), results[0])
	require.Equal(t, int64(6), results[2])
	require.Nil(t, results[1])
}

func TestExecute_HostPanicBecomesHostCallError(t *testing.T) {
	host := relay.HostFunc(func(relay.Call) (any, error) { panic("kaboom") })
	_, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) (any, error) {
		return p.Call(ctx, "anything")
	})
	var hce *relay.HostCallError
	require.ErrorAs(t, err, &hce)
	require.Contains(t, err.Error(), "kaboom")
}

type stackError struct{ stack string }

func (e *stackError) Error() string      { return "script threw" }
func (e *stackError) StackTrace() string { return e.stack }

func TestDispatcher_LogsHostStack(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	host := relay.HostFunc(func(relay.Call) (any, error) {
		return nil, fmt.Errorf("wrapped: %w", &stackError{stack: "at boom (script.js:3:9)"})
	})

	_, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) (any, error) {
		return p.Call(ctx, "boom")
	}, relay.WithLogger(logger))
	var hce *relay.HostCallError
	require.ErrorAs(t, err, &hce)

	out := buf.String()
	assert.Contains(t, out, "[Relay] host call failed")
	assert.Contains(t, out, "script.js:3:9")
}

func TestExecute_EarlyFailureExitsPromptly(t *testing.T) {
	engineErr := errors.New("engine failed before any callback")
	ex := relay.NewExecution(doublingHost())

	var err error
	require.NoError(t, testutil.Within(testutil.Timeout, func() {
		_, err = relay.Run(context.Background(), ex, func(context.Context, *relay.Proxy) (int, error) {
			return 0, engineErr
		})
	}))
	require.ErrorIs(t, err, engineErr)
	require.Equal(t, relay.StateFailed, ex.State())
	require.Zero(t, ex.Served())
}

func TestExecute_StateTransitions(t *testing.T) {
	var mu sync.Mutex
	var states []relay.State
	observe := relay.WithStateObserver(func(s relay.State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	ex := relay.NewExecution(doublingHost(), observe)
	require.Equal(t, relay.StateIdle, ex.State())

	var during relay.State
	_, err := relay.Run(context.Background(), ex, func(ctx context.Context, p *relay.Proxy) (any, error) {
		v, err := p.Call(ctx, "double", 1)
		during = ex.State()
		return v, err
	})
	require.NoError(t, err)
	require.Equal(t, relay.StateDispatching, during)
	require.Equal(t, relay.StateCompleted, ex.State())
	require.Equal(t, int64(1), ex.Served())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []relay.State{relay.StateSubmitted, relay.StateDispatching, relay.StateCompleted}, states)
}

func TestRun_ExecutionCannotBeReused(t *testing.T) {
	ex := relay.NewExecution(doublingHost())
	job := func(context.Context, *relay.Proxy) (int, error) { return 1, nil }
	_, err := relay.Run(context.Background(), ex, job)
	require.NoError(t, err)
	_, err = relay.Run(context.Background(), ex, job)
	require.ErrorIs(t, err, relay.ErrExecutionReused)
}

func TestExecute_JobPanicIsReported(t *testing.T) {
	_, err := relay.Execute(context.Background(), doublingHost(), func(context.Context, *relay.Proxy) (int, error) {
		panic("driver exploded")
	})
	require.ErrorContains(t, err, "driver exploded")
}

func TestExecute_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		<-started
		cancel()
	}()

	_, err := relay.Execute(ctx, doublingHost(), func(ctx context.Context, p *relay.Proxy) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecute_StrayWorkerObservesClosedChannel(t *testing.T) {
	var proxy *relay.Proxy
	_, err := relay.Execute(context.Background(), doublingHost(), func(_ context.Context, p *relay.Proxy) (int, error) {
		proxy = p
		return 1, nil
	})
	require.NoError(t, err)

	_, err = proxy.Call(context.Background(), "double", 1)
	require.ErrorIs(t, err, relay.ErrChannelClosed)
}

func TestExecute_ReentrantCallFailsExecution(t *testing.T) {
	var proxy *relay.Proxy
	var nested error
	host := relay.HostFunc(func(call relay.Call) (any, error) {
		// running on the dispatcher goroutine: a nested relay call could
		// never be serviced
		_, nested = proxy.Call(context.Background(), "inner")
		return "outer", nil
	})

	_, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) (any, error) {
		proxy = p
		_, _ = p.Call(ctx, "outer")
		return nil, nil
	})
	require.ErrorIs(t, nested, relay.ErrReentrantCall)
	require.ErrorIs(t, err, relay.ErrReentrantCall)
}

func TestProxy_BlockedWorkersObserveClose(t *testing.T) {
	// no dispatcher ever runs
	ch := relay.NewChannel()
	proxy := relay.NewProxy(ch, nil)
	const workers = 16

	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := proxy.Call(context.Background(), "double", i)
			errs <- err
		}()
	}

	require.NoError(t, testutil.Poll(context.Background(), func() bool { return ch.Len() == workers },
		testutil.Timeout, testutil.PollingInterval))
	cause := errors.New("torn down")
	require.Equal(t, workers, ch.Close(cause))

	for i := 0; i < workers; i++ {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, relay.ErrChannelClosed)
			require.ErrorIs(t, err, cause)
		case <-time.After(testutil.Timeout):
			t.Fatal("worker still blocked after close")
		}
	}
}

func TestProxy_ContextCancelAbandonsRequest(t *testing.T) {
	ch := relay.NewChannel()
	host := doublingHost()
	d := relay.NewDispatcher(ch, host)
	proxy := relay.NewProxy(ch, d)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := proxy.Call(ctx, "double", 1)
		errCh <- err
	}()
	require.NoError(t, testutil.Poll(context.Background(), func() bool { return ch.Len() == 1 },
		testutil.Timeout, testutil.PollingInterval))
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	done := make(chan struct{})
	close(done)
	require.NoError(t, d.Run(context.Background(), done))
	require.Equal(t, int64(1), d.Served())
	require.Empty(t, host.Calls(), "abandoned requests never reach the host")
}

func TestDispatcher_RejectsConcurrentRun(t *testing.T) {
	ch := relay.NewChannel()
	d := relay.NewDispatcher(ch, doublingHost())
	stop := make(chan struct{})
	first := make(chan error, 1)
	go func() { first <- d.Run(context.Background(), stop) }()

	require.NoError(t, testutil.Poll(context.Background(), func() bool { return d.Owner().ID() != 0 },
		testutil.Timeout, testutil.PollingInterval))
	require.ErrorIs(t, d.Run(context.Background(), stop), relay.ErrDispatcherRunning)
	close(stop)
	require.NoError(t, <-first)
}

func TestDispatcher_ReturnsWhenChannelClosed(t *testing.T) {
	ch := relay.NewChannel()
	d := relay.NewDispatcher(ch, doublingHost())
	cause := errors.New("closed elsewhere")
	ch.Close(cause)
	err := d.Run(context.Background(), make(chan struct{}))
	require.ErrorIs(t, err, relay.ErrChannelClosed)
	require.ErrorIs(t, err, cause)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := relay.NewMetrics(reg)
	host := doublingHost().Define("fail", func([]any) (any, error) { return nil, errors.New("nope") })

	_, err := relay.Execute(context.Background(), host, func(ctx context.Context, p *relay.Proxy) (any, error) {
		if _, err := p.Call(ctx, "double", 2); err != nil {
			return nil, err
		}
		return p.Call(ctx, "fail")
	}, relay.WithMetrics(m))
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "relayframe_relay_requests_total")
	require.Contains(t, names, "relayframe_relay_executions_total")

	n, err := promtest.GatherAndCount(reg, "relayframe_relay_requests_total")
	require.NoError(t, err)
	require.Equal(t, 2, n, "ok and host_error series")
	n, err = promtest.GatherAndCount(reg, "relayframe_relay_executions_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
