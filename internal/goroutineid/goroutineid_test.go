package goroutineid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	require.Equal(t, int64(123), parse([]byte("goroutine 123 [running]:\n")))
	require.Equal(t, int64(7), parse([]byte("goroutine 7")))
	require.Equal(t, int64(0), parse([]byte("something else\n")))
	require.Equal(t, int64(0), parse([]byte("goroutine x [running]")))
}

func TestGetDiffersAcrossGoroutines(t *testing.T) {
	self := Get()
	require.Greater(t, self, int64(0))

	other := make(chan int64, 1)
	go func() { other <- Get() }()
	require.NotEqual(t, self, <-other)
}

func TestOwner(t *testing.T) {
	var o Owner
	require.False(t, o.IsCurrent(), "zero value owns nothing")

	o.Claim()
	require.Equal(t, Get(), o.ID())
	require.True(t, o.IsCurrent())

	res := make(chan bool, 1)
	go func() { res <- o.IsCurrent() }()
	require.False(t, <-res)
}

func TestOwnerRelease(t *testing.T) {
	var o Owner
	o.Claim()
	o.Release()
	require.False(t, o.IsCurrent())
	require.Zero(t, o.ID())
}
