package engine

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/relayframe/internal/info"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := NewPool(size)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestClampSize(t *testing.T) {
	cpus := runtime.NumCPU()
	assert.Equal(t, cpus, clampSize(0))
	assert.Equal(t, cpus, clampSize(-3))
	assert.Equal(t, 1, clampSize(1))
	if info.Features().UnlimitedThreads {
		assert.Equal(t, cpus*4, clampSize(cpus*4))
	} else {
		assert.Equal(t, cpus, clampSize(cpus*4))
	}
}

func TestPool_ResizeBusy(t *testing.T) {
	p := newTestPool(t, 1)
	assert.Equal(t, 1, p.Size())

	done := p.begin()
	require.ErrorIs(t, p.Resize(1), ErrPoolBusy)
	done()
	done() // idempotent

	require.NoError(t, p.Resize(1))
	assert.Equal(t, 1, p.Size())
}

func TestPool_ResizeAfterRelease(t *testing.T) {
	p, err := NewPool(1)
	require.NoError(t, err)
	p.Release()
	require.ErrorIs(t, p.Resize(1), ErrPoolClosed)
}

func TestPool_RunAll(t *testing.T) {
	p := newTestPool(t, 4)
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	seen := make([]atomic.Int32, 100)
	err := p.run(ctx, cancel, len(seen), func(i int) error {
		seen[i].Add(1)
		return nil
	})
	require.NoError(t, err)
	for i := range seen {
		assert.Equal(t, int32(1), seen[i].Load(), "task %d", i)
	}
}

func TestPool_RunFirstErrorCancels(t *testing.T) {
	p := newTestPool(t, 1)
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	boom := errors.New("boom")
	var ran atomic.Int32
	err := p.run(ctx, cancel, 50, func(i int) error {
		ran.Add(1)
		if i == 0 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.ErrorIs(t, context.Cause(ctx), boom)
	assert.Less(t, ran.Load(), int32(50))
}

func TestPool_RunRecoversPanics(t *testing.T) {
	p := newTestPool(t, 2)
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	err := p.run(ctx, cancel, 3, func(i int) error {
		if i == 1 {
			panic("kaboom")
		}
		return nil
	})
	require.ErrorContains(t, err, "kaboom")
}

func TestPool_RunClosed(t *testing.T) {
	p, err := NewPool(1)
	require.NoError(t, err)
	p.Release()

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	err = p.run(ctx, cancel, 1, func(int) error { return nil })
	require.ErrorIs(t, err, ErrPoolClosed)
}
