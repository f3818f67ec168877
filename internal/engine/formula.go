package engine

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// hostFuncName is the function formulas call to reach the host runtime,
// e.g. host("double", a).
const hostFuncName = "host"

type formulaNode struct {
	src       string
	columns   []string
	callsHost bool
	err       error
}

// Formula parses an expr-lang expression evaluated once per row. Identifiers
// refer to columns of the frame; host("fn", args...) calls the host
// function fn. If any referenced column is null in a row the result is null.
//
// Parse errors are reported when the expression is evaluated.
func Formula(src string) Expr {
	n := &formulaNode{src: src}
	tree, err := parser.Parse(src)
	if err != nil {
		n.err = fmt.Errorf("formula %q: %w", src, err)
		return Expr{n}
	}
	c := &identCollector{
		callees:  map[*ast.IdentifierNode]struct{}{},
		declared: map[string]struct{}{},
	}
	ast.Walk(&tree.Node, c)

	seen := map[string]struct{}{}
	for _, id := range c.idents {
		if _, ok := c.callees[id]; ok {
			if id.Value == hostFuncName {
				n.callsHost = true
			}
			continue
		}
		if _, ok := c.declared[id.Value]; ok {
			continue
		}
		if _, ok := seen[id.Value]; ok {
			continue
		}
		seen[id.Value] = struct{}{}
		n.columns = append(n.columns, id.Value)
	}
	return Expr{n}
}

type identCollector struct {
	idents   []*ast.IdentifierNode
	callees  map[*ast.IdentifierNode]struct{}
	declared map[string]struct{}
}

func (c *identCollector) Visit(node *ast.Node) {
	switch x := (*node).(type) {
	case *ast.IdentifierNode:
		c.idents = append(c.idents, x)
	case *ast.CallNode:
		if id, ok := x.Callee.(*ast.IdentifierNode); ok {
			c.callees[id] = struct{}{}
		}
	case *ast.VariableDeclaratorNode:
		c.declared[x.Name] = struct{}{}
	}
}

func (n *formulaNode) outputName() string {
	if len(n.columns) > 0 {
		return n.columns[0]
	}
	return "formula"
}

func (n *formulaNode) String() string { return fmt.Sprintf("formula(%q)", n.src) }
func (*formulaNode) children() []node { return nil }

// compile builds the program for one execution, binding host() to ec.
func (n *formulaNode) compile(ec *evalContext) (*vm.Program, error) {
	program, err := expr.Compile(n.src,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.Function(hostFuncName, ec.hostFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", n.src, err)
	}
	return program, nil
}

func (n *formulaNode) eval(ec *evalContext, df *DataFrame) (vector, error) {
	program, ok := ec.programs[n]
	if !ok {
		return vector{}, fmt.Errorf("formula %q was not prepared", n.src)
	}
	cols := make([]*Series, len(n.columns))
	for i, name := range n.columns {
		s, err := df.Column(name)
		if err != nil {
			return vector{}, err
		}
		cols[i] = s
	}
	if len(cols) == 0 {
		v, err := n.run(program, map[string]any{})
		if err != nil {
			return vector{}, err
		}
		return scalar(v), nil
	}

	out := make([]any, df.Height())
rows:
	for i := range out {
		if ec.ctx.Err() != nil {
			return vector{}, context.Cause(ec.ctx)
		}
		env := make(map[string]any, len(cols))
		for _, c := range cols {
			v := c.Get(i)
			if v == nil {
				continue rows
			}
			env[c.name] = v
		}
		v, err := n.run(program, env)
		if err != nil {
			return vector{}, err
		}
		out[i] = v
	}
	return vector{values: out}, nil
}

func (n *formulaNode) run(program *vm.Program, env map[string]any) (any, error) {
	v, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", n.src, err)
	}
	nv, _, err := normalize(v)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", n.src, err)
	}
	return nv, nil
}
