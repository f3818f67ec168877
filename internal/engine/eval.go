package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/expr-lang/expr/vm"

	"github.com/joeycumines/relayframe/internal/relay"
)

// evalContext is shared by every task of one execution. It is read-only once
// prepared.
type evalContext struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	proxy    *relay.Proxy
	programs map[*formulaNode]*vm.Program
}

func newEvalContext(ctx context.Context, proxy *relay.Proxy) *evalContext {
	return &evalContext{ctx: ctx, proxy: proxy, programs: map[*formulaNode]*vm.Program{}}
}

// prepare compiles the formulas in exprs.
func (ec *evalContext) prepare(exprs []Expr) error {
	for _, e := range exprs {
		var err error
		walk(e.n, func(n node) {
			f, ok := n.(*formulaNode)
			if !ok || err != nil {
				return
			}
			if _, done := ec.programs[f]; done {
				return
			}
			var p *vm.Program
			if p, err = f.compile(ec); err == nil {
				ec.programs[f] = p
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (ec *evalContext) call(fn string, args ...any) (any, error) {
	return ec.proxy.Call(ec.ctx, fn, args...)
}

// hostFunc backs host(name, args...) inside formulas.
func (ec *evalContext) hostFunc(params ...any) (any, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%s: missing function name", hostFuncName)
	}
	name, ok := params[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s: function name must be a string, got %T", hostFuncName, params[0])
	}
	return ec.call(name, params[1:]...)
}

// vector is an evaluation result: one value per row, or a single value
// broadcast to any length.
type vector struct {
	values []any
	scalar bool
}

func scalar(v any) vector { return vector{values: []any{v}, scalar: true} }

func (v vector) at(i int) any {
	if v.scalar {
		return v.values[0]
	}
	return v.values[i]
}

// broadcastLen returns the common length of vs, or -1 if all are scalars.
func broadcastLen(vs ...vector) (int, error) {
	n := -1
	for _, v := range vs {
		if v.scalar {
			continue
		}
		if n >= 0 && len(v.values) != n {
			return 0, fmt.Errorf("%w: operands have lengths %d and %d", ErrShapeMismatch, n, len(v.values))
		}
		n = len(v.values)
	}
	return n, nil
}

func (n colNode) eval(_ *evalContext, df *DataFrame) (vector, error) {
	s, err := df.Column(n.name)
	if err != nil {
		return vector{}, err
	}
	return vector{values: s.Values()}, nil
}

func (n litNode) eval(*evalContext, *DataFrame) (vector, error) {
	if n.err != nil {
		return vector{}, n.err
	}
	return scalar(n.value), nil
}

func (n binaryNode) eval(ec *evalContext, df *DataFrame) (vector, error) {
	l, err := n.left.eval(ec, df)
	if err != nil {
		return vector{}, err
	}
	r, err := n.right.eval(ec, df)
	if err != nil {
		return vector{}, err
	}
	length, err := broadcastLen(l, r)
	if err != nil {
		return vector{}, err
	}
	if length < 0 {
		v, err := n.op.apply(l.values[0], r.values[0])
		if err != nil {
			return vector{}, err
		}
		return scalar(v), nil
	}
	out := make([]any, length)
	for i := range out {
		if out[i], err = n.op.apply(l.at(i), r.at(i)); err != nil {
			return vector{}, err
		}
	}
	return vector{values: out}, nil
}

func (n aliasNode) eval(ec *evalContext, df *DataFrame) (vector, error) {
	return n.inner.eval(ec, df)
}

func (n castNode) eval(ec *evalContext, df *DataFrame) (vector, error) {
	in, err := n.inner.eval(ec, df)
	if err != nil {
		return vector{}, err
	}
	out := make([]any, len(in.values))
	for i, v := range in.values {
		if out[i], err = convert(v, n.dtype); err != nil {
			return vector{}, err
		}
	}
	return vector{values: out, scalar: in.scalar}, nil
}

func (n aggNode) eval(ec *evalContext, df *DataFrame) (vector, error) {
	in, err := n.inner.eval(ec, df)
	if err != nil {
		return vector{}, err
	}
	v, err := n.kind.reduce(in.values)
	if err != nil {
		return vector{}, fmt.Errorf("%s: %w", n, err)
	}
	return scalar(v), nil
}

func (n mapNode) eval(ec *evalContext, df *DataFrame) (vector, error) {
	in, err := n.inner.eval(ec, df)
	if err != nil {
		return vector{}, err
	}
	res, err := ec.call(n.fn, in.values)
	if err != nil {
		return vector{}, err
	}
	out, err := hostValues(res, n.returnType)
	if err != nil {
		return vector{}, fmt.Errorf("map %s: %w", n.fn, err)
	}
	if len(out) != len(in.values) {
		return vector{}, fmt.Errorf("%w: map %s returned %d values for %d inputs", ErrShapeMismatch, n.fn, len(out), len(in.values))
	}
	return vector{values: out, scalar: in.scalar}, nil
}

func (n applyNode) eval(ec *evalContext, df *DataFrame) (vector, error) {
	inputs := make([]vector, len(n.inputs))
	for i, in := range n.inputs {
		v, err := in.eval(ec, df)
		if err != nil {
			return vector{}, err
		}
		inputs[i] = v
	}
	length, err := broadcastLen(inputs...)
	if err != nil {
		return vector{}, err
	}
	rows := length
	if rows < 0 {
		rows = 1
	}
	out := make([]any, rows)
	for i := range out {
		args := make([]any, len(inputs))
		for j, in := range inputs {
			args[j] = in.at(i)
		}
		res, err := ec.call(n.fn, args...)
		if err != nil {
			return vector{}, err
		}
		if out[i], err = hostValue(res, n.returnType); err != nil {
			return vector{}, fmt.Errorf("apply %s: row %d: %w", n.fn, i, err)
		}
	}
	return vector{values: out, scalar: length < 0}, nil
}

// hostValue normalizes a value returned by the host, converting it to want
// unless want is Null.
func hostValue(v any, want DataType) (any, error) {
	nv, _, err := normalize(v)
	if err != nil {
		return nil, err
	}
	if want == Null {
		return nv, nil
	}
	return convert(nv, want)
}

// hostValues unpacks an array returned by the host.
func hostValues(v any, want DataType) ([]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: expected an array, got %T", ErrTypeMismatch, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		var err error
		if out[i], err = hostValue(rv.Index(i).Interface(), want); err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
	}
	return out, nil
}
