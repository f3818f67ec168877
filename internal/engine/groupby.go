package engine

import (
	"context"
	"fmt"
	"strings"
)

// GroupBy is a pending grouped aggregation. Build it with Session.GroupBy.
type GroupBy struct {
	s             *Session
	df            *DataFrame
	keys          []Expr
	maintainOrder bool
}

// GroupBy groups df by the values of keys.
func (s *Session) GroupBy(df *DataFrame, keys ...Expr) *GroupBy {
	return &GroupBy{s: s, df: df, keys: keys}
}

// MaintainOrder makes Agg emit groups in order of first appearance. By
// default group order is unspecified.
func (g *GroupBy) MaintainOrder(maintain bool) *GroupBy {
	c := *g
	c.maintainOrder = maintain
	return &c
}

type group struct {
	first int
	rows  []int
}

// Agg evaluates aggs once per group. Each aggregation must reduce a group to
// a single value. The result has the key columns followed by one column per
// aggregation.
func (g *GroupBy) Agg(ctx context.Context, aggs ...Expr) (*DataFrame, error) {
	if len(g.keys) == 0 {
		return nil, fmt.Errorf("group by requires at least one key")
	}
	all := append(append([]Expr(nil), g.keys...), aggs...)
	if err := g.s.check(g.df, all); err != nil {
		return nil, err
	}
	return g.s.execute(ctx, "group_by", all, func(ec *evalContext) (*DataFrame, error) {
		keyVecs, err := g.s.evaluate(ec, g.df, g.keys)
		if err != nil {
			return nil, err
		}
		groups := g.partition(keyVecs)

		frames := make([]*DataFrame, len(groups))
		for i, grp := range groups {
			frames[i] = g.df.Gather(grp.rows)
		}
		results := make([]any, len(groups)*len(aggs))
		if len(aggs) > 0 {
			err = g.s.pool.run(ec.ctx, ec.cancel, len(results), func(i int) error {
				gi, ai := i/len(aggs), i%len(aggs)
				v, err := aggs[ai].n.eval(ec, frames[gi])
				if err != nil {
					return err
				}
				if !v.scalar && len(v.values) != 1 {
					return fmt.Errorf("%w: %s produced %d values for a group, expected 1", ErrShapeMismatch, aggs[ai], len(v.values))
				}
				results[i] = v.values[0]
				return nil
			})
			if err != nil {
				return nil, err
			}
		}

		cols := make([]*Series, 0, len(all))
		for ki, k := range g.keys {
			values := make([]any, len(groups))
			for gi, grp := range groups {
				values[gi] = keyVecs[ki].at(grp.first)
			}
			col, err := NewSeries(k.Name(), values)
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
		for ai, a := range aggs {
			values := make([]any, len(groups))
			for gi := range groups {
				values[gi] = results[gi*len(aggs)+ai]
			}
			col, err := NewSeries(a.Name(), values)
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
		return NewDataFrame(cols...)
	})
}

// partition assigns every row to a group keyed by its key values.
func (g *GroupBy) partition(keys []vector) []*group {
	index := make(map[string]*group)
	var ordered []*group
	var b strings.Builder
	for row := 0; row < g.df.Height(); row++ {
		b.Reset()
		for _, k := range keys {
			fmt.Fprintf(&b, "%T=%#v;", k.at(row), k.at(row))
		}
		key := b.String()
		grp, ok := index[key]
		if !ok {
			grp = &group{first: row}
			index[key] = grp
			ordered = append(ordered, grp)
		}
		grp.rows = append(grp.rows, row)
	}
	if g.maintainOrder {
		return ordered
	}
	unordered := make([]*group, 0, len(index))
	for _, grp := range index {
		unordered = append(unordered, grp)
	}
	return unordered
}
