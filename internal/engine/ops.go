package engine

import (
	"fmt"
	"math"
)

// Op is a binary operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAnd
	OpOr
)

var opSymbols = [...]string{
	OpAdd:   "+",
	OpSub:   "-",
	OpMul:   "*",
	OpDiv:   "/",
	OpMod:   "%",
	OpEq:    "==",
	OpNotEq: "!=",
	OpLt:    "<",
	OpLtEq:  "<=",
	OpGt:    ">",
	OpGtEq:  ">=",
	OpAnd:   "&",
	OpOr:    "|",
}

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opSymbols) {
		return opSymbols[op]
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// apply evaluates a op b on normalized values. Null operands yield null,
// except for the Kleene cases of And and Or.
func (op Op) apply(a, b any) (any, error) {
	switch op {
	case OpAnd, OpOr:
		return op.logical(a, b)
	}
	if a == nil || b == nil {
		return nil, nil
	}
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return op.arith(a, b)
	default:
		return op.compare(a, b)
	}
}

func (op Op) arith(a, b any) (any, error) {
	if op == OpAdd {
		if sa, ok := a.(string); ok {
			if sb, ok := b.(string); ok {
				return sa + sb, nil
			}
		}
	}
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	if aInt && bInt {
		switch op {
		case OpAdd:
			return ia + ib, nil
		case OpSub:
			return ia - ib, nil
		case OpMul:
			return ia * ib, nil
		case OpDiv:
			return float64(ia) / float64(ib), nil
		case OpMod:
			if ib == 0 {
				return nil, nil
			}
			return ia % ib, nil
		}
	}
	fa, ok1 := asFloat(a)
	fb, ok2 := asFloat(b)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: %T %s %T", ErrTypeMismatch, a, op, b)
	}
	switch op {
	case OpAdd:
		return fa + fb, nil
	case OpSub:
		return fa - fb, nil
	case OpMul:
		return fa * fb, nil
	case OpDiv:
		return fa / fb, nil
	default:
		if fb == 0 {
			return nil, nil
		}
		return math.Mod(fa, fb), nil
	}
}

func (op Op) compare(a, b any) (any, error) {
	c, err := compareValues(a, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %T %s %T", ErrTypeMismatch, a, op, b)
	}
	switch op {
	case OpEq:
		return c == 0, nil
	case OpNotEq:
		return c != 0, nil
	case OpLt:
		return c < 0, nil
	case OpLtEq:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func (op Op) logical(a, b any) (any, error) {
	ba, aBool := a.(bool)
	bb, bBool := b.(bool)
	if (a != nil && !aBool) || (b != nil && !bBool) {
		return nil, fmt.Errorf("%w: %T %s %T", ErrTypeMismatch, a, op, b)
	}
	if op == OpAnd {
		switch {
		case (aBool && !ba) || (bBool && !bb):
			return false, nil
		case a == nil || b == nil:
			return nil, nil
		default:
			return true, nil
		}
	}
	switch {
	case (aBool && ba) || (bBool && bb):
		return true, nil
	case a == nil || b == nil:
		return nil, nil
	default:
		return false, nil
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// compareValues orders two non-null normalized values of compatible types.
func compareValues(a, b any) (int, error) {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	case string:
		if y, ok := b.(string); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
		return 0, ErrTypeMismatch
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !x:
				return -1, nil
			}
			return 1, nil
		}
		return 0, ErrTypeMismatch
	}
	fa, ok1 := asFloat(a)
	fb, ok2 := asFloat(b)
	if !ok1 || !ok2 {
		return 0, ErrTypeMismatch
	}
	switch {
	case fa < fb:
		return -1, nil
	case fa > fb:
		return 1, nil
	}
	return 0, nil
}
