package engine

import (
	"fmt"
)

// DataFrame is an ordered collection of equally long series with unique
// names. Frames are immutable; every operation returns a new frame.
type DataFrame struct {
	cols   []*Series
	height int
}

// NewDataFrame builds a frame from cols. All columns must have the same
// length and distinct names.
func NewDataFrame(cols ...*Series) (*DataFrame, error) {
	df := &DataFrame{cols: make([]*Series, 0, len(cols))}
	seen := make(map[string]struct{}, len(cols))
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, ok := seen[c.name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.name)
		}
		seen[c.name] = struct{}{}
		if i == 0 {
			df.height = c.length
		} else if c.length != df.height {
			return nil, fmt.Errorf("%w: column %q has length %d, expected %d", ErrShapeMismatch, c.name, c.length, df.height)
		}
		df.cols = append(df.cols, c)
	}
	return df, nil
}

// FromMap builds a frame from column name to values, in the order of names.
func FromMap(names []string, data map[string][]any) (*DataFrame, error) {
	cols := make([]*Series, 0, len(names))
	for _, name := range names {
		values, ok := data[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
		}
		s, err := NewSeries(name, values)
		if err != nil {
			return nil, err
		}
		cols = append(cols, s)
	}
	return NewDataFrame(cols...)
}

// Shape returns (rows, columns).
func (df *DataFrame) Shape() (int, int) { return df.height, len(df.cols) }

func (df *DataFrame) Height() int { return df.height }
func (df *DataFrame) Width() int  { return len(df.cols) }

func (df *DataFrame) Columns() []string {
	names := make([]string, len(df.cols))
	for i, c := range df.cols {
		names[i] = c.name
	}
	return names
}

// SetColumnNames returns a frame with the columns renamed positionally.
func (df *DataFrame) SetColumnNames(names []string) (*DataFrame, error) {
	if len(names) != len(df.cols) {
		return nil, fmt.Errorf("%w: got %d names for %d columns", ErrShapeMismatch, len(names), len(df.cols))
	}
	cols := make([]*Series, len(df.cols))
	for i, c := range df.cols {
		cols[i] = c.Rename(names[i])
	}
	return NewDataFrame(cols...)
}

func (df *DataFrame) Column(name string) (*Series, error) {
	for _, c := range df.cols {
		if c.name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

func (df *DataFrame) GetColumns() []*Series {
	return append([]*Series(nil), df.cols...)
}

func (df *DataFrame) DTypes() []DataType {
	types := make([]DataType, len(df.cols))
	for i, c := range df.cols {
		types[i] = c.dtype
	}
	return types
}

// SchemaField is one entry of a frame schema.
type SchemaField struct {
	Name  string
	DType DataType
}

func (df *DataFrame) Schema() []SchemaField {
	fields := make([]SchemaField, len(df.cols))
	for i, c := range df.cols {
		fields[i] = SchemaField{Name: c.name, DType: c.dtype}
	}
	return fields
}

// WithColumn returns a frame with s added, replacing any column of the same
// name in place.
func (df *DataFrame) WithColumn(s *Series) (*DataFrame, error) {
	cols := df.GetColumns()
	replaced := false
	for i, c := range cols {
		if c.name == s.name {
			cols[i] = s
			replaced = true
			break
		}
	}
	if !replaced {
		cols = append(cols, s)
	}
	return NewDataFrame(cols...)
}

// ToList returns every column's values keyed by name.
func (df *DataFrame) ToList() map[string][]any {
	out := make(map[string][]any, len(df.cols))
	for _, c := range df.cols {
		out[c.name] = c.Values()
	}
	return out
}

// Clone returns a shallow copy. Series are immutable so storage is shared.
func (df *DataFrame) Clone() *DataFrame {
	return &DataFrame{cols: df.GetColumns(), height: df.height}
}

// Slice returns length rows starting at offset.
func (df *DataFrame) Slice(offset, length int) *DataFrame {
	cols := make([]*Series, len(df.cols))
	for i, c := range df.cols {
		cols[i] = c.Slice(offset, length)
	}
	return &DataFrame{cols: cols, height: length}
}

// Gather returns the rows at indices, in order.
func (df *DataFrame) Gather(indices []int) *DataFrame {
	cols := make([]*Series, len(df.cols))
	for i, c := range df.cols {
		cols[i] = c.Gather(indices)
	}
	return &DataFrame{cols: cols, height: len(indices)}
}
