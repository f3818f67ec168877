package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joeycumines/relayframe/internal/config"
	"github.com/joeycumines/relayframe/internal/engine"
)

// SelectCommand evaluates expressions over a CSV file.
type SelectCommand struct {
	queryCommand
	stdin io.Reader
}

func NewSelectCommand(cfg *config.Config) *SelectCommand {
	return &SelectCommand{
		queryCommand: newQueryCommand(cfg,
			"select",
			"Evaluate formulas over a CSV file",
			"select --csv file [--script file.js] [options] [name=]formula..."),
		stdin: os.Stdin,
	}
}

func (c *SelectCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New("at least one expression is required")
	}
	exprs := make([]engine.Expr, 0, len(args))
	for _, arg := range args {
		e, err := parseSelectExpr(arg)
		if err != nil {
			return err
		}
		exprs = append(exprs, e)
	}

	env, err := c.open(c.stdin)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	out, err := env.session.Select(ctx, env.frame, exprs...)
	if err != nil {
		return err
	}
	return c.finish(env, out, stdout, stderr)
}

// parseSelectExpr accepts "[name=]formula" or "[name=]map:fn:column", the
// latter passing the whole column to fn in one host call.
func parseSelectExpr(arg string) (engine.Expr, error) {
	name, src := splitName(arg)
	if src == "" {
		return engine.Expr{}, fmt.Errorf("empty expression in %q", arg)
	}
	var e engine.Expr
	if rest, ok := strings.CutPrefix(src, "map:"); ok {
		fn, col, ok := strings.Cut(rest, ":")
		if !ok || fn == "" || col == "" {
			return engine.Expr{}, fmt.Errorf("invalid map expression %q, want map:fn:column", src)
		}
		e = engine.Col(col).Map(fn, engine.Null)
	} else {
		e = engine.Formula(src)
	}
	if name != "" {
		e = e.Alias(name)
	}
	return e, nil
}
