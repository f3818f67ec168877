package engine

import (
	"fmt"
	"strings"
)

// Expr is a column expression. The zero value is invalid; build expressions
// with Col, Lit, Map, Apply or Formula and the methods below.
type Expr struct {
	n node
}

// node is one step of an expression tree.
type node interface {
	outputName() string
	String() string
	children() []node
	eval(ec *evalContext, df *DataFrame) (vector, error)
}

// Col references a column by name.
func Col(name string) Expr { return Expr{colNode{name: name}} }

// Lit is a constant broadcast to the length of the other operands.
func Lit(v any) Expr {
	nv, _, err := normalize(v)
	return Expr{litNode{value: nv, err: err}}
}

// Map sends the whole column produced by e to the host function fn as one
// array argument. fn must return an array of the same length. A returnType
// of Null infers the result type.
func (e Expr) Map(fn string, returnType DataType) Expr {
	return Expr{mapNode{inner: e.n, fn: fn, returnType: returnType}}
}

// Apply calls the host function fn once per row with the row's values of
// inputs as arguments.
func Apply(fn string, returnType DataType, inputs ...Expr) Expr {
	ns := make([]node, len(inputs))
	for i, in := range inputs {
		ns[i] = in.n
	}
	return Expr{applyNode{fn: fn, inputs: ns, returnType: returnType}}
}

func (e Expr) binary(op Op, other Expr) Expr {
	return Expr{binaryNode{op: op, left: e.n, right: other.n}}
}

func (e Expr) Add(o Expr) Expr   { return e.binary(OpAdd, o) }
func (e Expr) Sub(o Expr) Expr   { return e.binary(OpSub, o) }
func (e Expr) Mul(o Expr) Expr   { return e.binary(OpMul, o) }
func (e Expr) Div(o Expr) Expr   { return e.binary(OpDiv, o) }
func (e Expr) Mod(o Expr) Expr   { return e.binary(OpMod, o) }
func (e Expr) Eq(o Expr) Expr    { return e.binary(OpEq, o) }
func (e Expr) NotEq(o Expr) Expr { return e.binary(OpNotEq, o) }
func (e Expr) Lt(o Expr) Expr    { return e.binary(OpLt, o) }
func (e Expr) LtEq(o Expr) Expr  { return e.binary(OpLtEq, o) }
func (e Expr) Gt(o Expr) Expr    { return e.binary(OpGt, o) }
func (e Expr) GtEq(o Expr) Expr  { return e.binary(OpGtEq, o) }
func (e Expr) And(o Expr) Expr   { return e.binary(OpAnd, o) }
func (e Expr) Or(o Expr) Expr    { return e.binary(OpOr, o) }

// Alias names the output column.
func (e Expr) Alias(name string) Expr { return Expr{aliasNode{inner: e.n, name: name}} }

func (e Expr) Cast(dtype DataType) Expr { return Expr{castNode{inner: e.n, dtype: dtype}} }

func (e Expr) Sum() Expr   { return Expr{aggNode{kind: AggSum, inner: e.n}} }
func (e Expr) Mean() Expr  { return Expr{aggNode{kind: AggMean, inner: e.n}} }
func (e Expr) Min() Expr   { return Expr{aggNode{kind: AggMin, inner: e.n}} }
func (e Expr) Max() Expr   { return Expr{aggNode{kind: AggMax, inner: e.n}} }
func (e Expr) Count() Expr { return Expr{aggNode{kind: AggCount, inner: e.n}} }
func (e Expr) First() Expr { return Expr{aggNode{kind: AggFirst, inner: e.n}} }
func (e Expr) Last() Expr  { return Expr{aggNode{kind: AggLast, inner: e.n}} }

// Agg applies the aggregation kind to e.
func (e Expr) Agg(kind AggKind) Expr { return Expr{aggNode{kind: kind, inner: e.n}} }

// Name is the name of the column the expression produces.
func (e Expr) Name() string {
	if e.n == nil {
		return ""
	}
	return e.n.outputName()
}

func (e Expr) String() string {
	if e.n == nil {
		return "<invalid>"
	}
	return e.n.String()
}

func (e Expr) valid() error {
	if e.n == nil {
		return fmt.Errorf("invalid zero Expr")
	}
	var err error
	walk(e.n, func(n node) {
		if err != nil {
			return
		}
		switch x := n.(type) {
		case litNode:
			err = x.err
		case *formulaNode:
			err = x.err
		}
	})
	return err
}

func walk(n node, fn func(node)) {
	fn(n)
	for _, c := range n.children() {
		walk(c, fn)
	}
}

// elementwise reports whether row i of the result depends only on row i of
// the input, so the input may be split into chunks.
func (e Expr) elementwise() bool {
	ok := true
	walk(e.n, func(n node) {
		switch n.(type) {
		case aggNode, mapNode:
			ok = false
		}
	})
	return ok
}

// needsHost reports whether evaluating e calls the host.
func (e Expr) needsHost() bool {
	need := false
	walk(e.n, func(n node) {
		switch x := n.(type) {
		case mapNode, applyNode:
			need = true
		case *formulaNode:
			if x.callsHost {
				need = true
			}
		}
	})
	return need
}

// columns lists the input columns e reads, in first-use order.
func (e Expr) columns() []string {
	var names []string
	seen := map[string]struct{}{}
	add := func(name string) {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	walk(e.n, func(n node) {
		switch x := n.(type) {
		case colNode:
			add(x.name)
		case *formulaNode:
			for _, c := range x.columns {
				add(c)
			}
		}
	})
	return names
}

type colNode struct{ name string }

func (n colNode) outputName() string { return n.name }
func (n colNode) String() string     { return fmt.Sprintf("col(%q)", n.name) }
func (colNode) children() []node     { return nil }

type litNode struct {
	value any
	err   error
}

func (litNode) outputName() string { return "literal" }
func (n litNode) String() string {
	if s, ok := n.value.(string); ok {
		return fmt.Sprintf("lit(%q)", s)
	}
	return fmt.Sprintf("lit(%s)", formatValue(n.value))
}
func (litNode) children() []node { return nil }

type binaryNode struct {
	op          Op
	left, right node
}

func (n binaryNode) outputName() string { return n.left.outputName() }
func (n binaryNode) String() string {
	return fmt.Sprintf("[%s %s %s]", n.left, n.op, n.right)
}
func (n binaryNode) children() []node { return []node{n.left, n.right} }

type aliasNode struct {
	inner node
	name  string
}

func (n aliasNode) outputName() string { return n.name }
func (n aliasNode) String() string     { return fmt.Sprintf("%s.alias(%q)", n.inner, n.name) }
func (n aliasNode) children() []node   { return []node{n.inner} }

type castNode struct {
	inner node
	dtype DataType
}

func (n castNode) outputName() string { return n.inner.outputName() }
func (n castNode) String() string     { return fmt.Sprintf("%s.cast(%s)", n.inner, n.dtype) }
func (n castNode) children() []node   { return []node{n.inner} }

type mapNode struct {
	inner      node
	fn         string
	returnType DataType
}

func (n mapNode) outputName() string { return n.inner.outputName() }
func (n mapNode) String() string     { return fmt.Sprintf("%s.map(%s)", n.inner, n.fn) }
func (n mapNode) children() []node   { return []node{n.inner} }

type applyNode struct {
	fn         string
	inputs     []node
	returnType DataType
}

func (n applyNode) outputName() string {
	if len(n.inputs) > 0 {
		return n.inputs[0].outputName()
	}
	return n.fn
}

func (n applyNode) String() string {
	parts := make([]string, len(n.inputs))
	for i, in := range n.inputs {
		parts[i] = in.String()
	}
	return fmt.Sprintf("apply(%s, %s)", n.fn, strings.Join(parts, ", "))
}

func (n applyNode) children() []node { return n.inputs }
