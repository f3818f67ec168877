package config

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// Kind is the value type an option accepts.
type Kind string

const (
	KindString   Kind = "string"
	KindBool     Kind = "bool"
	KindInt      Kind = "int"
	KindDuration Kind = "duration"
)

// Option declares one configuration key.
type Option struct {
	// Section is empty for global options, otherwise the [section] the key
	// belongs to.
	Section string
	Key     string
	Kind    Kind
	Default string
	Usage   string
	// Env names the environment variable that overrides the key, if any.
	Env string
}

// Check reports whether value is acceptable for o.
func (o Option) Check(value string) error {
	var err error
	switch o.Kind {
	case KindString, "":
	case KindBool:
		_, err = parseBool(value)
	case KindInt:
		_, err = strconv.Atoi(value)
	case KindDuration:
		_, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown option kind %q", o.Kind)
	}
	if err != nil {
		return fmt.Errorf("expected %s, got %q", o.Kind, value)
	}
	return nil
}

type optionKey struct{ section, key string }

// Schema is the set of options relayframe understands. It drives
// validation, typed resolution and the generated config file.
type Schema struct {
	options []Option
	index   map[optionKey]int
}

// NewSchema builds a schema from opts. A repeated section/key replaces the
// earlier declaration in place.
func NewSchema(opts ...Option) *Schema {
	s := &Schema{index: make(map[optionKey]int, len(opts))}
	for _, o := range opts {
		k := optionKey{o.Section, o.Key}
		if i, ok := s.index[k]; ok {
			s.options[i] = o
			continue
		}
		s.index[k] = len(s.options)
		s.options = append(s.options, o)
	}
	return s
}

// Lookup returns the option declared for key in section, "" being global.
func (s *Schema) Lookup(section, key string) (Option, bool) {
	i, ok := s.index[optionKey{section, key}]
	if !ok {
		return Option{}, false
	}
	return s.options[i], true
}

// Known reports whether key may appear in section. Global keys may appear
// in any section.
func (s *Schema) Known(section, key string) bool {
	if _, ok := s.Lookup(section, key); ok {
		return true
	}
	_, ok := s.Lookup("", key)
	return ok
}

// Options returns the options of section in declaration order.
func (s *Schema) Options(section string) []Option {
	var out []Option
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, o)
		}
	}
	return out
}

// Sections returns the named sections, sorted.
func (s *Schema) Sections() []string {
	var out []string
	for _, o := range s.options {
		if o.Section != "" && !slices.Contains(out, o.Section) {
			out = append(out, o.Section)
		}
	}
	slices.Sort(out)
	return out
}

// Resolve returns the effective value of a global key: its environment
// variable when set, then the config file, then the default.
func (s *Schema) Resolve(c *Config, key string) string {
	opt, declared := s.Lookup("", key)
	if declared && opt.Env != "" {
		if v, ok := os.LookupEnv(opt.Env); ok {
			return v
		}
	}
	if v, ok := c.GetGlobalOption(key); ok {
		return v
	}
	return opt.Default
}

// ResolveCommand returns the effective value of key for command. A value in
// the command's own section wins, then the section default, then the global
// resolution.
func (s *Schema) ResolveCommand(c *Config, command, key string) string {
	if v, ok := c.GetCommandOption(command, key); ok {
		return v
	}
	if opt, ok := s.Lookup(command, key); ok {
		return opt.Default
	}
	return s.Resolve(c, key)
}

// ResolveBool resolves key as a boolean, falling back to the default when
// the value does not parse.
func (s *Schema) ResolveBool(c *Config, key string) bool {
	return resolveAs(s, c, key, parseBool)
}

// ResolveInt resolves key as an integer, falling back to the default when
// the value does not parse.
func (s *Schema) ResolveInt(c *Config, key string) int {
	return resolveAs(s, c, key, strconv.Atoi)
}

// ResolveDuration resolves key as a duration. Unset keys are zero.
func (s *Schema) ResolveDuration(c *Config, key string) time.Duration {
	return resolveAs(s, c, key, time.ParseDuration)
}

func resolveAs[T any](s *Schema, c *Config, key string, parse func(string) (T, error)) T {
	if v, err := parse(s.Resolve(c, key)); err == nil {
		return v
	}
	var v T
	if opt, ok := s.Lookup("", key); ok {
		if d, err := parse(opt.Default); err == nil {
			v = d
		}
	}
	return v
}

// Validate lists every unknown key and badly typed value in c, sorted.
func (s *Schema) Validate(c *Config) []string {
	var issues []string
	for key, value := range c.Global {
		opt, ok := s.Lookup("", key)
		if !ok {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
		} else if err := opt.Check(value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}
	for section, opts := range c.Commands {
		for key, value := range opts {
			opt, ok := s.Lookup(section, key)
			if !ok {
				opt, ok = s.Lookup("", key)
			}
			if !ok {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
			} else if err := opt.Check(value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}
	slices.Sort(issues)
	return issues
}

// WriteHelp prints an aligned reference of every option, global first.
func (s *Schema) WriteHelp(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeSection := func(title string, opts []Option) {
		fmt.Fprintf(tw, "%s\n", title)
		for _, o := range opts {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", o.Key, o.Usage, optionNotes(o))
		}
	}
	writeSection("Global Options:", s.Options(""))
	for _, section := range s.Sections() {
		fmt.Fprintln(tw)
		writeSection(fmt.Sprintf("[%s] Options:", section), s.Options(section))
	}
	return tw.Flush()
}

func optionNotes(o Option) string {
	var notes []string
	if o.Kind != "" && o.Kind != KindString {
		notes = append(notes, "type: "+string(o.Kind))
	}
	if o.Default != "" {
		notes = append(notes, "default: "+o.Default)
	}
	if o.Env != "" {
		notes = append(notes, "env: "+o.Env)
	}
	if len(notes) == 0 {
		return ""
	}
	return "(" + strings.Join(notes, ", ") + ")"
}

// parseBool accepts true/false, 1/0, yes/no and on/off in any case.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", s)
}

// DefaultSchema declares every option relayframe reads.
func DefaultSchema() *Schema {
	return NewSchema(
		Option{Key: "threads", Kind: KindInt, Default: "0", Usage: "Worker pool size, 0 for one per CPU", Env: "RELAYFRAME_THREADS"},
		Option{Key: "chunk-size", Kind: KindInt, Default: "1024", Usage: "Rows per elementwise task", Env: "RELAYFRAME_CHUNK_SIZE"},
		Option{Key: "package-name", Default: "relayframe", Usage: "Module name scripts require()", Env: "RELAYFRAME_PACKAGE_NAME"},
		Option{Key: "query.timeout", Kind: KindDuration, Usage: "Abort queries running longer than this"},
		Option{Key: "relay.metrics", Kind: KindBool, Default: "false", Usage: "Print relay metrics after each query"},
		Option{Key: "color", Default: "auto", Usage: "Color mode: auto, always, never"},

		Option{Key: "log.file", Usage: "Log file path (JSON output)", Env: "RELAYFRAME_LOG_FILE"},
		Option{Key: "log.level", Default: "info", Usage: "Log level: debug, info, warn, error", Env: "RELAYFRAME_LOG_LEVEL"},
		Option{Key: "log.max-size-mb", Kind: KindInt, Default: "10", Usage: "Max log file size in MB before rotation"},
		Option{Key: "log.max-files", Kind: KindInt, Default: "5", Usage: "Max number of rotated log backup files"},

		Option{Section: "select", Key: "delimiter", Default: ",", Usage: "CSV field delimiter"},
		Option{Section: "groupby", Key: "delimiter", Default: ",", Usage: "CSV field delimiter"},
		Option{Section: "groupby", Key: "maintain-order", Kind: KindBool, Default: "false", Usage: "Emit groups in order of first appearance"},
	)
}
