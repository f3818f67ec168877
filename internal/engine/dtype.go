package engine

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// DataType is the logical type of a Series.
type DataType int

const (
	// Null is the type of a column holding only nulls.
	Null DataType = iota
	Int64
	Float64
	String
	Bool
)

func (t DataType) String() string {
	switch t {
	case Null:
		return "null"
	case Int64:
		return "i64"
	case Float64:
		return "f64"
	case String:
		return "str"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// ParseDataType accepts the names printed by DataType.String plus a few
// common aliases.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null":
		return Null, nil
	case "i64", "int", "int64", "integer":
		return Int64, nil
	case "f64", "float", "float64", "double":
		return Float64, nil
	case "str", "string", "utf8":
		return String, nil
	case "bool", "boolean":
		return Bool, nil
	default:
		return Null, fmt.Errorf("unknown data type %q", s)
	}
}

// supertype returns the type both a and b can be stored as.
func supertype(a, b DataType) (DataType, bool) {
	switch {
	case a == b:
		return a, true
	case a == Null:
		return b, true
	case b == Null:
		return a, true
	case (a == Int64 && b == Float64) || (a == Float64 && b == Int64):
		return Float64, true
	default:
		return Null, false
	}
}

// normalize maps a Go value onto the engine's representation: int64,
// float64, string, bool or nil.
func normalize(v any) (any, DataType, error) {
	switch x := v.(type) {
	case nil:
		return nil, Null, nil
	case int64:
		return x, Int64, nil
	case float64:
		return x, Float64, nil
	case string:
		return x, String, nil
	case bool:
		return x, Bool, nil
	case int:
		return int64(x), Int64, nil
	case int32:
		return int64(x), Int64, nil
	case float32:
		return float64(x), Float64, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), Int64, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return float64(u), Float64, nil
		}
		return int64(u), Int64, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), Float64, nil
	case reflect.String:
		return rv.String(), String, nil
	case reflect.Bool:
		return rv.Bool(), Bool, nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, Null, nil
		}
		return normalize(rv.Elem().Interface())
	}
	return nil, Null, fmt.Errorf("unsupported value of type %T", v)
}

// convert coerces an already normalized value to t.
func convert(v any, t DataType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case Null:
		return nil, nil
	case Int64:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("cannot cast %v to %s", x, t)
			}
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot cast %q to %s", x, t)
			}
			return n, nil
		}
	case Float64:
		switch x := v.(type) {
		case int64:
			return float64(x), nil
		case float64:
			return x, nil
		case bool:
			if x {
				return 1.0, nil
			}
			return 0.0, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot cast %q to %s", x, t)
			}
			return f, nil
		}
	case String:
		return formatValue(v), nil
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case float64:
			return x != 0, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "1", "yes":
				return true, nil
			case "false", "0", "no":
				return false, nil
			}
			return nil, fmt.Errorf("cannot cast %q to %s", x, t)
		}
	}
	return nil, fmt.Errorf("cannot cast %T to %s", v, t)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
