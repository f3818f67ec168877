package command

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/joeycumines/relayframe/internal/config"
	"github.com/joeycumines/relayframe/internal/engine"
	"github.com/joeycumines/relayframe/internal/info"
)

// InfoCommand reports build features, pool size and dependency versions.
type InfoCommand struct {
	*BaseCommand
	config *config.Config
	json   bool
}

func NewInfoCommand(cfg *config.Config) *InfoCommand {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &InfoCommand{
		BaseCommand: NewBaseCommand(
			"info",
			"Show build and runtime information",
			"info [--json]",
		),
		config: cfg,
	}
}

func (c *InfoCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.json, "json", false, "Output as JSON")
}

func (c *InfoCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}

	pool, err := engine.NewPool(config.DefaultSchema().ResolveInt(c.config, "threads"))
	if err != nil {
		return err
	}
	defer pool.Release()
	report := info.Collect(pool)

	if c.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "version:\t%s\n", report.Version)
	_, _ = fmt.Fprintf(w, "go:\t%s\n", report.GoVersion)
	_, _ = fmt.Fprintf(w, "features:\t%s\n", strings.Join(report.Features.Names(), ", "))
	_, _ = fmt.Fprintf(w, "thread pool size:\t%d\n", report.ThreadPoolSize)
	_, _ = fmt.Fprintf(w, "package name:\t%s\n", report.PackageName)
	for _, dep := range sortedKeys(report.Dependencies) {
		_, _ = fmt.Fprintf(w, "%s:\t%s\n", dep, report.Dependencies[dep])
	}
	return w.Flush()
}
