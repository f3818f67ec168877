package engine

import (
	"fmt"
	"strings"
)

// Series is a named, immutable column. Storage is typed; nulls are tracked
// in a separate mask which is nil when the column has none.
type Series struct {
	name   string
	dtype  DataType
	length int
	ints   []int64
	floats []float64
	strs   []string
	bools  []bool
	nulls  []bool
}

// NewSeries builds a series from arbitrary Go values, inferring the type.
// Integers and floats mix into Float64; any other mix is an error.
func NewSeries(name string, values []any) (*Series, error) {
	norm := make([]any, len(values))
	dtype := Null
	for i, v := range values {
		nv, t, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("series %q: index %d: %w", name, i, err)
		}
		st, ok := supertype(dtype, t)
		if !ok {
			return nil, fmt.Errorf("series %q: index %d: %w: %s and %s", name, i, ErrTypeMismatch, dtype, t)
		}
		dtype = st
		norm[i] = nv
	}
	return buildSeries(name, dtype, norm)
}

// buildSeries stores normalized values as dtype.
func buildSeries(name string, dtype DataType, values []any) (*Series, error) {
	s := &Series{name: name, dtype: dtype, length: len(values)}
	switch dtype {
	case Int64:
		s.ints = make([]int64, len(values))
	case Float64:
		s.floats = make([]float64, len(values))
	case String:
		s.strs = make([]string, len(values))
	case Bool:
		s.bools = make([]bool, len(values))
	case Null:
		if len(values) > 0 {
			s.nulls = make([]bool, len(values))
			for i := range s.nulls {
				s.nulls[i] = true
			}
		}
		return s, nil
	}
	for i, v := range values {
		if v == nil {
			if s.nulls == nil {
				s.nulls = make([]bool, len(values))
			}
			s.nulls[i] = true
			continue
		}
		cv, err := convert(v, dtype)
		if err != nil {
			return nil, fmt.Errorf("series %q: index %d: %w", name, i, err)
		}
		switch dtype {
		case Int64:
			s.ints[i] = cv.(int64)
		case Float64:
			s.floats[i] = cv.(float64)
		case String:
			s.strs[i] = cv.(string)
		case Bool:
			s.bools[i] = cv.(bool)
		}
	}
	return s, nil
}

// NewInt64Series returns a null-free i64 series that takes ownership of values.
func NewInt64Series(name string, values []int64) *Series {
	return &Series{name: name, dtype: Int64, length: len(values), ints: values}
}

// NewFloat64Series returns a null-free f64 series that takes ownership of values.
func NewFloat64Series(name string, values []float64) *Series {
	return &Series{name: name, dtype: Float64, length: len(values), floats: values}
}

// NewStringSeries returns a null-free str series that takes ownership of values.
func NewStringSeries(name string, values []string) *Series {
	return &Series{name: name, dtype: String, length: len(values), strs: values}
}

// NewBoolSeries returns a null-free bool series that takes ownership of values.
func NewBoolSeries(name string, values []bool) *Series {
	return &Series{name: name, dtype: Bool, length: len(values), bools: values}
}

func (s *Series) Name() string    { return s.name }
func (s *Series) DType() DataType { return s.dtype }
func (s *Series) Len() int        { return s.length }

// Rename returns a copy of s called name. Storage is shared.
func (s *Series) Rename(name string) *Series {
	c := *s
	c.name = name
	return &c
}

func (s *Series) IsNull(i int) bool {
	return s.nulls != nil && s.nulls[i]
}

func (s *Series) NullCount() int {
	n := 0
	for _, null := range s.nulls {
		if null {
			n++
		}
	}
	return n
}

// Get returns the value at i as int64, float64, string, bool or nil.
func (s *Series) Get(i int) any {
	if i < 0 || i >= s.length {
		panic(fmt.Sprintf("engine: index %d out of range for series %q of length %d", i, s.name, s.length))
	}
	if s.IsNull(i) {
		return nil
	}
	switch s.dtype {
	case Int64:
		return s.ints[i]
	case Float64:
		return s.floats[i]
	case String:
		return s.strs[i]
	case Bool:
		return s.bools[i]
	default:
		return nil
	}
}

// Values copies the column into a slice.
func (s *Series) Values() []any {
	out := make([]any, s.length)
	for i := range out {
		out[i] = s.Get(i)
	}
	return out
}

// Slice returns length rows starting at offset, sharing storage.
func (s *Series) Slice(offset, length int) *Series {
	if offset < 0 || length < 0 || offset+length > s.length {
		panic(fmt.Sprintf("engine: slice [%d:%d] out of range for series %q of length %d", offset, offset+length, s.name, s.length))
	}
	c := &Series{name: s.name, dtype: s.dtype, length: length}
	end := offset + length
	switch s.dtype {
	case Int64:
		c.ints = s.ints[offset:end:end]
	case Float64:
		c.floats = s.floats[offset:end:end]
	case String:
		c.strs = s.strs[offset:end:end]
	case Bool:
		c.bools = s.bools[offset:end:end]
	}
	if s.nulls != nil {
		c.nulls = s.nulls[offset:end:end]
	}
	return c
}

// Gather returns the rows at the given indices, in order.
func (s *Series) Gather(indices []int) *Series {
	values := make([]any, len(indices))
	for i, idx := range indices {
		values[i] = s.Get(idx)
	}
	out, err := buildSeries(s.name, s.dtype, values)
	if err != nil {
		// values already have the right type
		panic(err)
	}
	return out
}

// Cast converts every value to dtype. Nulls stay null.
func (s *Series) Cast(dtype DataType) (*Series, error) {
	if dtype == s.dtype {
		return s, nil
	}
	return buildSeries(s.name, dtype, s.Values())
}

func (s *Series) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "shape: (%d,)\nSeries: %q [%s]\n[", s.length, s.name, s.dtype)
	for i := 0; i < s.length; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		v := s.Get(i)
		if str, ok := v.(string); ok {
			fmt.Fprintf(&b, "%q", str)
		} else {
			b.WriteString(formatValue(v))
		}
	}
	b.WriteString("]")
	return b.String()
}

func concatSeries(name string, parts []*Series) (*Series, error) {
	var values []any
	for _, p := range parts {
		values = append(values, p.Values()...)
	}
	return NewSeries(name, values)
}
