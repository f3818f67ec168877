package engine

import (
	"fmt"
	"strings"
)

// AggKind is an aggregation reducing a column to one value.
type AggKind int

const (
	AggSum AggKind = iota
	AggMean
	AggMin
	AggMax
	AggCount
	AggFirst
	AggLast
)

var aggNames = [...]string{
	AggSum:   "sum",
	AggMean:  "mean",
	AggMin:   "min",
	AggMax:   "max",
	AggCount: "count",
	AggFirst: "first",
	AggLast:  "last",
}

func (k AggKind) String() string {
	if int(k) >= 0 && int(k) < len(aggNames) {
		return aggNames[k]
	}
	return fmt.Sprintf("AggKind(%d)", int(k))
}

func ParseAggKind(s string) (AggKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range aggNames {
		if name == s {
			return AggKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown aggregation %q", s)
}

type aggNode struct {
	kind  AggKind
	inner node
}

func (n aggNode) outputName() string { return n.inner.outputName() }
func (n aggNode) String() string     { return fmt.Sprintf("%s.%s()", n.inner, n.kind) }
func (n aggNode) children() []node   { return []node{n.inner} }

// reduce folds values, skipping nulls except for First and Last.
func (k AggKind) reduce(values []any) (any, error) {
	switch k {
	case AggFirst:
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	case AggLast:
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	case AggCount:
		var n int64
		for _, v := range values {
			if v != nil {
				n++
			}
		}
		return n, nil
	case AggSum:
		return sum(values)
	case AggMean:
		var total float64
		var n int
		for _, v := range values {
			if v == nil {
				continue
			}
			f, ok := asFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: cannot average %T", ErrTypeMismatch, v)
			}
			total += f
			n++
		}
		if n == 0 {
			return nil, nil
		}
		return total / float64(n), nil
	case AggMin, AggMax:
		var best any
		for _, v := range values {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c, err := compareValues(v, best)
			if err != nil {
				return nil, fmt.Errorf("%w: cannot compare %T and %T", ErrTypeMismatch, v, best)
			}
			if (k == AggMin && c < 0) || (k == AggMax && c > 0) {
				best = v
			}
		}
		return best, nil
	}
	return nil, fmt.Errorf("unknown aggregation %s", k)
}

func sum(values []any) (any, error) {
	var ints int64
	var floats float64
	isFloat := false
	for _, v := range values {
		switch x := v.(type) {
		case nil:
		case int64:
			ints += x
		case bool:
			if x {
				ints++
			}
		case float64:
			floats += x
			isFloat = true
		default:
			return nil, fmt.Errorf("%w: cannot sum %T", ErrTypeMismatch, v)
		}
	}
	if isFloat {
		return floats + float64(ints), nil
	}
	return ints, nil
}
