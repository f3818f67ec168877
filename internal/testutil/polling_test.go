package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoll(t *testing.T) {
	var n atomic.Int32
	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(time.Millisecond)
			n.Add(1)
		}
	}()
	err := Poll(context.Background(), func() bool { return n.Load() == 3 }, time.Second, time.Millisecond)
	require.NoError(t, err)
}

func TestPoll_Timeout(t *testing.T) {
	err := Poll(context.Background(), func() bool { return false }, 20*time.Millisecond, time.Millisecond)
	require.ErrorContains(t, err, "timeout")
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Poll(ctx, func() bool { return false }, time.Second, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitForState(t *testing.T) {
	var n atomic.Int32
	n.Store(4)
	got, err := WaitForState(context.Background(), n.Load, func(v int32) bool { return v == 4 }, time.Second, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int32(4), got)

	_, err = WaitForState(context.Background(), n.Load, func(v int32) bool { return v == 5 }, 10*time.Millisecond, time.Millisecond)
	require.Error(t, err)
}

func TestWithin(t *testing.T) {
	require.NoError(t, Within(time.Second, func() {}))
	block := make(chan struct{})
	defer close(block)
	require.Error(t, Within(10*time.Millisecond, func() { <-block }))
}

func TestDoubler(t *testing.T) {
	v, err := Doubler([]any{int64(21)})
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	v, err = Doubler([]any{[]any{int64(1), 2.5, nil}})
	require.NoError(t, err)
	require.Equal(t, []any{int64(2), 5.0, nil}, v)

	_, err = Doubler([]any{"x"})
	require.Error(t, err)
}
