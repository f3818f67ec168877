package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/term"

	"github.com/joeycumines/relayframe/internal/config"
	"github.com/joeycumines/relayframe/internal/engine"
	"github.com/joeycumines/relayframe/internal/host"
	"github.com/joeycumines/relayframe/internal/relay"
)

// queryCommand holds the flags and wiring shared by select and groupby.
type queryCommand struct {
	*BaseCommand
	config *config.Config

	csvPath    string
	scriptPath string
	delimiter  string
	noHeader   bool
	nullValues string
	threads    int
	chunkSize  int
	timeout    time.Duration
	metrics    bool
	color      string
}

func newQueryCommand(cfg *config.Config, name, description, usage string) queryCommand {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return queryCommand{
		BaseCommand: NewBaseCommand(name, description, usage),
		config:      cfg,
	}
}

func (c *queryCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.csvPath, "csv", "", "CSV file to query, - for stdin")
	fs.StringVar(&c.scriptPath, "script", "", "JavaScript file defining host functions")
	fs.StringVar(&c.delimiter, "delimiter", "", "CSV field delimiter (default from config)")
	fs.BoolVar(&c.noHeader, "no-header", false, "Treat the first CSV record as data")
	fs.StringVar(&c.nullValues, "null-values", "", "Comma-separated field values read as null")
	fs.IntVar(&c.threads, "threads", 0, "Worker pool size (default from config)")
	fs.IntVar(&c.chunkSize, "chunk-size", 0, "Rows per elementwise task (default from config)")
	fs.DurationVar(&c.timeout, "timeout", 0, "Abort the query after this long (default from config)")
	fs.BoolVar(&c.metrics, "metrics", false, "Print relay metrics to stderr after the query")
	fs.StringVar(&c.color, "color", "", "Color mode: auto, always, never (default from config)")
}

// queryEnv is everything a single query run needs. The host runtime belongs
// to the goroutine that built the env.
type queryEnv struct {
	id       uuid.UUID
	logger   *slog.Logger
	pool     *engine.Pool
	runtime  *host.Runtime
	session  *engine.Session
	frame    *engine.DataFrame
	registry *prometheus.Registry
}

func (c *queryCommand) open(stdin io.Reader) (*queryEnv, error) {
	if c.csvPath == "" {
		return nil, errors.New("--csv is required")
	}
	schema := config.DefaultSchema()

	env := &queryEnv{id: uuid.New()}
	env.logger = slog.Default().With("query", env.id.String(), "command", c.Name())

	df, err := c.readFrame(schema, stdin)
	if err != nil {
		return nil, err
	}
	env.frame = df

	threads := c.threads
	if threads <= 0 {
		threads = schema.ResolveInt(c.config, "threads")
	}
	if env.pool, err = engine.NewPool(threads, engine.WithPoolLogger(env.logger)); err != nil {
		return nil, err
	}

	if env.runtime, err = host.New(host.WithLogger(env.logger), host.WithPool(env.pool)); err != nil {
		env.pool.Release()
		return nil, err
	}
	if c.scriptPath != "" {
		code, err := os.ReadFile(c.scriptPath)
		if err != nil {
			env.pool.Release()
			return nil, fmt.Errorf("failed to read script: %w", err)
		}
		if err := env.runtime.LoadScript(c.scriptPath, string(code)); err != nil {
			env.pool.Release()
			return nil, err
		}
	}

	chunkSize := c.chunkSize
	if chunkSize <= 0 {
		chunkSize = schema.ResolveInt(c.config, "chunk-size")
	}
	opts := []engine.Option{
		engine.WithHost(env.runtime),
		engine.WithChunkSize(chunkSize),
		engine.WithLogger(env.logger),
	}
	if c.metrics || schema.ResolveBool(c.config, "relay.metrics") {
		env.registry = prometheus.NewRegistry()
		opts = append(opts, engine.WithRelayOptions(
			relay.WithMetrics(relay.NewMetrics(env.registry)),
			relay.WithLogger(env.logger),
		))
	}
	env.session = engine.NewSession(env.pool, opts...)

	env.logger.Debug("[Command] query ready",
		"rows", df.Height(),
		"columns", df.Width(),
		"threads", env.pool.Size(),
		"chunkSize", chunkSize,
		"functions", env.runtime.Functions())
	return env, nil
}

func (e *queryEnv) Close() {
	e.pool.Release()
}

func (c *queryCommand) readFrame(schema *config.Schema, stdin io.Reader) (*engine.DataFrame, error) {
	delim := c.delimiter
	if delim == "" {
		delim = schema.ResolveCommand(c.config, c.Name(), "delimiter")
	}
	r, size := utf8.DecodeRuneInString(delim)
	if r == utf8.RuneError || size != len(delim) {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", delim)
	}
	opts := engine.CSVOptions{Delimiter: r, NoHeader: c.noHeader}
	if c.nullValues != "" {
		opts.NullValues = strings.Split(c.nullValues, ",")
	}

	var in io.Reader
	if c.csvPath == "-" {
		in = stdin
	} else {
		f, err := os.Open(c.csvPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open csv: %w", err)
		}
		defer f.Close()
		in = f
	}
	df, err := engine.ReadCSV(in, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.csvPath, err)
	}
	return df, nil
}

// queryContext applies the configured timeout.
func (c *queryCommand) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = config.DefaultSchema().ResolveDuration(c.config, "query.timeout")
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// styled reports whether output to w gets ANSI styling.
func (c *queryCommand) styled(w io.Writer) bool {
	mode := c.color
	if mode == "" {
		mode = config.DefaultSchema().Resolve(c.config, "color")
	}
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// finish renders the result and, if enabled, the relay metrics.
func (c *queryCommand) finish(env *queryEnv, df *engine.DataFrame, stdout, stderr io.Writer) error {
	_, _ = fmt.Fprintln(stdout, df.Render(c.styled(stdout)))
	if env.registry == nil {
		return nil
	}
	return writeMetrics(stderr, env.registry)
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// splitName splits "name=rest" when name is an identifier and the '=' is not
// part of '=='. Otherwise name is empty and rest is s.
func splitName(s string) (name, rest string) {
	i := strings.IndexByte(s, '=')
	if i <= 0 || strings.HasPrefix(s[i:], "==") {
		return "", s
	}
	name = strings.TrimSpace(s[:i])
	if !isIdentifier(name) {
		return "", s
	}
	return name, strings.TrimSpace(s[i+1:])
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
