package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries_Inference(t *testing.T) {
	s, err := NewSeries("a", []any{1, 2, nil})
	require.NoError(t, err)
	assert.Equal(t, Int64, s.DType())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 1, s.NullCount())
	assert.Equal(t, []any{int64(1), int64(2), nil}, s.Values())

	s, err = NewSeries("b", []any{1, 2.5})
	require.NoError(t, err)
	assert.Equal(t, Float64, s.DType())
	assert.Equal(t, []any{1.0, 2.5}, s.Values())

	s, err = NewSeries("c", []any{nil, nil})
	require.NoError(t, err)
	assert.Equal(t, Null, s.DType())
	assert.Equal(t, 2, s.NullCount())

	_, err = NewSeries("d", []any{1, "x"})
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSeries_SliceGatherCast(t *testing.T) {
	s := NewInt64Series("a", []int64{10, 20, 30, 40})

	sl := s.Slice(1, 2)
	assert.Equal(t, []any{int64(20), int64(30)}, sl.Values())
	assert.Equal(t, "a", sl.Name())

	g := s.Gather([]int{3, 0, 3})
	assert.Equal(t, []any{int64(40), int64(10), int64(40)}, g.Values())

	c, err := s.Cast(String)
	require.NoError(t, err)
	assert.Equal(t, []any{"10", "20", "30", "40"}, c.Values())

	r := s.Rename("b")
	assert.Equal(t, "b", r.Name())
	assert.Equal(t, "a", s.Name())

	assert.Panics(t, func() { s.Get(4) })
	assert.Panics(t, func() { s.Slice(3, 2) })
}

func TestSeries_String(t *testing.T) {
	s, err := NewSeries("name", []any{"x", nil})
	require.NoError(t, err)
	assert.Equal(t, "shape: (2,)\nSeries: \"name\" [str]\n[\"x\", null]", s.String())
}
