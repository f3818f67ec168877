package engine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// CSVOptions controls ReadCSV.
type CSVOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune
	// NoHeader treats the first record as data and names columns
	// column_0, column_1, ...
	NoHeader bool
	// NullValues are field values read as null. An empty field is always
	// null.
	NullValues []string
	// Schema overrides inference for the named columns.
	Schema map[string]DataType
}

// ReadCSV reads a frame from r. Each column is typed as the narrowest of
// Int64, Float64, Bool and String that fits every non-null field.
func ReadCSV(r io.Reader, opts CSVOptions) (*DataFrame, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}

	var names []string
	var fields [][]*string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if names == nil {
			if opts.NoHeader {
				names = make([]string, len(rec))
				for i := range names {
					names[i] = "column_" + strconv.Itoa(i)
				}
			} else {
				names = rec
				fields = make([][]*string, len(names))
				continue
			}
			fields = make([][]*string, len(names))
		}
		for i := range names {
			field := rec[i]
			if field == "" || slices.Contains(opts.NullValues, field) {
				fields[i] = append(fields[i], nil)
				continue
			}
			fields[i] = append(fields[i], &field)
		}
	}

	cols := make([]*Series, len(names))
	for i, name := range names {
		dtype, ok := opts.Schema[name]
		if !ok {
			dtype = inferCSV(fields[i])
		}
		values := make([]any, len(fields[i]))
		for row, f := range fields[i] {
			if f != nil {
				values[row] = *f
			}
		}
		s, err := buildSeries(name, dtype, values)
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		cols[i] = s
	}
	return NewDataFrame(cols...)
}

func inferCSV(fields []*string) DataType {
	isInt, isFloat, isBool, seen := true, true, true, false
	for _, f := range fields {
		if f == nil {
			continue
		}
		seen = true
		s := strings.TrimSpace(*f)
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			switch strings.ToLower(s) {
			case "true", "false":
			default:
				isBool = false
			}
		}
	}
	switch {
	case !seen:
		return Null
	case isInt:
		return Int64
	case isFloat:
		return Float64
	case isBool:
		return Bool
	default:
		return String
	}
}
