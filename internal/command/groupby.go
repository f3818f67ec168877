package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joeycumines/relayframe/internal/config"
	"github.com/joeycumines/relayframe/internal/engine"
)

// GroupByCommand aggregates a CSV file by key columns.
type GroupByCommand struct {
	queryCommand
	stdin         io.Reader
	by            string
	maintainOrder bool
}

func NewGroupByCommand(cfg *config.Config) *GroupByCommand {
	return &GroupByCommand{
		queryCommand: newQueryCommand(cfg,
			"groupby",
			"Aggregate a CSV file by key columns",
			"groupby --csv file --by col[,col] [options] [name=]agg:[map:fn:]column..."),
		stdin: os.Stdin,
	}
}

func (c *GroupByCommand) SetupFlags(fs *flag.FlagSet) {
	c.queryCommand.SetupFlags(fs)
	fs.StringVar(&c.by, "by", "", "Comma-separated key columns")
	fs.BoolVar(&c.maintainOrder, "maintain-order", false, "Emit groups in order of first appearance (default from config)")
}

func (c *GroupByCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var keys []engine.Expr
	for _, k := range strings.Split(c.by, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, engine.Col(k))
		}
	}
	if len(keys) == 0 {
		return errors.New("--by is required")
	}
	if len(args) == 0 {
		return errors.New("at least one aggregation is required")
	}
	aggs := make([]engine.Expr, 0, len(args))
	for _, arg := range args {
		e, err := parseAggExpr(arg)
		if err != nil {
			return err
		}
		aggs = append(aggs, e)
	}

	env, err := c.open(c.stdin)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	maintain := c.maintainOrder
	if !maintain {
		maintain, _ = strconv.ParseBool(config.DefaultSchema().ResolveCommand(c.config, c.Name(), "maintain-order"))
	}
	out, err := env.session.GroupBy(env.frame, keys...).MaintainOrder(maintain).Agg(ctx, aggs...)
	if err != nil {
		return err
	}
	return c.finish(env, out, stdout, stderr)
}

// parseAggExpr accepts "[name=]agg:column" or "[name=]agg:map:fn:column".
func parseAggExpr(arg string) (engine.Expr, error) {
	name, src := splitName(arg)
	aggName, rest, ok := strings.Cut(src, ":")
	if !ok || rest == "" {
		return engine.Expr{}, fmt.Errorf("invalid aggregation %q, want agg:column", arg)
	}
	kind, err := engine.ParseAggKind(aggName)
	if err != nil {
		return engine.Expr{}, err
	}

	var input engine.Expr
	if mapped, ok := strings.CutPrefix(rest, "map:"); ok {
		fn, col, ok := strings.Cut(mapped, ":")
		if !ok || fn == "" || col == "" {
			return engine.Expr{}, fmt.Errorf("invalid aggregation %q, want agg:map:fn:column", arg)
		}
		input = engine.Col(col).Map(fn, engine.Null)
	} else {
		input = engine.Col(rest)
	}

	e := input.Agg(kind)
	if name != "" {
		e = e.Alias(name)
	}
	return e, nil
}
