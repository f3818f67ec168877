package command

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/joeycumines/relayframe/internal/config"
)

// HelpCommand displays help information for commands.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand(
			"help",
			"Display help information for commands",
			"help [command]",
		),
		registry: registry,
	}
}

func (c *HelpCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, "relayframe - query CSV data with JavaScript callbacks")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Usage: relayframe <command> [options] [args...]")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Available commands:")

		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			if cmd, err := c.registry.Get(name); err == nil {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
			}
		}
		_ = w.Flush()

		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Use 'relayframe help <command>' for more information about a specific command.")
		return nil
	}

	cmd, err := c.registry.Get(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		return err
	}

	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: relayframe %s\n", cmd.Usage())

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	var buf bytes.Buffer
	fs.SetOutput(&buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = fmt.Fprint(stdout, buf.String())
	}
	return nil
}

// VersionCommand displays version information.
type VersionCommand struct {
	*BaseCommand
	version string
}

func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand(
			"version",
			"Display version information",
			"version",
		),
		version: version,
	}
}

func (c *VersionCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	_, _ = fmt.Fprintf(stdout, "relayframe version %s\n", c.version)
	return nil
}

// ConfigCommand reads, writes and validates configuration.
type ConfigCommand struct {
	*BaseCommand
	config     *config.Config
	configPath string
	showGlobal bool
	showAll    bool
}

// NewConfigCommand creates a config command. With an empty configPath, set
// operations persist to the default location.
func NewConfigCommand(cfg *config.Config, configPath string) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand(
			"config",
			"Manage configuration settings",
			"config [options] [key] [value]",
		),
		config:     cfg,
		configPath: configPath,
	}
}

func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.showGlobal, "global", false, "Show only global configuration")
	fs.BoolVar(&c.showAll, "all", false, "Show all configuration (global and command-specific)")
}

func (c *ConfigCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		switch {
		case c.showAll:
			c.printGlobal(stdout)
			_, _ = fmt.Fprintln(stdout, "\nCommand-specific configuration:")
			for _, section := range sortedKeys(c.config.Commands) {
				_, _ = fmt.Fprintf(stdout, "  [%s]\n", section)
				opts := c.config.Commands[section]
				for _, key := range sortedKeys(opts) {
					_, _ = fmt.Fprintf(stdout, "    %s: %s\n", key, opts[key])
				}
			}
		case c.showGlobal:
			c.printGlobal(stdout)
		default:
			_, _ = fmt.Fprintln(stdout, "Configuration management:")
			_, _ = fmt.Fprintln(stdout, "  config <key>          - Get configuration value")
			_, _ = fmt.Fprintln(stdout, "  config <key> <value>  - Set configuration value")
			_, _ = fmt.Fprintln(stdout, "  config --global       - Show global configuration")
			_, _ = fmt.Fprintln(stdout, "  config --all          - Show all configuration")
			_, _ = fmt.Fprintln(stdout, "  config validate       - Validate configuration")
			_, _ = fmt.Fprintln(stdout, "  config schema         - Show configuration schema")
		}
		return nil
	}

	switch args[0] {
	case "validate":
		return c.executeValidate(stdout)
	case "schema":
		return config.DefaultSchema().WriteHelp(stdout)
	}

	switch len(args) {
	case 1:
		// env, then file, then schema default
		key := args[0]
		if value := config.DefaultSchema().Resolve(c.config, key); value != "" {
			_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, value)
		} else if _, ok := c.config.GetGlobalOption(key); ok {
			_, _ = fmt.Fprintf(stdout, "%s: \n", key)
		} else {
			_, _ = fmt.Fprintf(stdout, "Configuration key '%s' not found\n", key)
		}
		return nil

	case 2:
		key, value := args[0], args[1]
		c.config.SetGlobalOption(key, value)

		path := c.configPath
		if path == "" {
			path, _ = config.GetConfigPath()
		}
		if path != "" {
			if err := config.SetKeyInFile(path, key, value); err != nil {
				_, _ = fmt.Fprintf(stderr, "Warning: failed to persist config to disk: %v\n", err)
			}
		}
		_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", key, value)
		return nil
	}

	_, _ = fmt.Fprintln(stderr, "Invalid number of arguments")
	return fmt.Errorf("invalid arguments")
}

func (c *ConfigCommand) printGlobal(stdout io.Writer) {
	_, _ = fmt.Fprintln(stdout, "Global configuration:")
	for _, key := range sortedKeys(c.config.Global) {
		_, _ = fmt.Fprintf(stdout, "  %s: %s\n", key, c.config.Global[key])
	}
}

func (c *ConfigCommand) executeValidate(stdout io.Writer) error {
	issues := config.DefaultSchema().Validate(c.config)
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(stdout, "Configuration is valid.")
		return nil
	}
	_, _ = fmt.Fprintf(stdout, "Configuration has %d issue(s):\n", len(issues))
	for _, issue := range issues {
		_, _ = fmt.Fprintf(stdout, "  - %s\n", issue)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InitCommand writes a commented default configuration file.
type InitCommand struct {
	*BaseCommand
	configPath string
	force      bool
}

// NewInitCommand creates an init command writing to configPath, or the
// default location when empty.
func NewInitCommand(configPath string) *InitCommand {
	return &InitCommand{
		BaseCommand: NewBaseCommand(
			"init",
			"Write a default configuration file",
			"init [options]",
		),
		configPath: configPath,
	}
}

func (c *InitCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "Overwrite an existing configuration file")
}

func (c *InitCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	path := c.configPath
	if path == "" {
		var err error
		if path, err = config.GetConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if _, err := os.Stat(path); err == nil && !c.force {
		_, _ = fmt.Fprintf(stdout, "Configuration already exists at: %s\n", path)
		_, _ = fmt.Fprintln(stdout, "Use --force to overwrite existing configuration")
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigFile(config.DefaultSchema())), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: Failed to load created config: %v\n", err)
	} else if cfg.HasWarnings() {
		_, _ = fmt.Fprintf(stderr, "Warning: created config has %d issue(s)\n", len(cfg.Warnings))
	}

	_, _ = fmt.Fprintf(stdout, "Initialized relayframe configuration at: %s\n", path)
	return nil
}

// defaultConfigFile renders every schema option as a commented line holding
// its default.
func defaultConfigFile(s *config.Schema) string {
	var b strings.Builder
	b.WriteString("# relayframe configuration file\n")
	b.WriteString("# Format: optionName remainingLineIsTheValue\n")
	b.WriteString("# Use [command_name] sections for command-specific options\n\n")
	for _, o := range s.Options("") {
		fmt.Fprintf(&b, "# %s\n# %s %s\n", o.Usage, o.Key, o.Default)
	}
	for _, section := range s.Sections() {
		fmt.Fprintf(&b, "\n[%s]\n", section)
		for _, o := range s.Options(section) {
			fmt.Fprintf(&b, "# %s\n# %s %s\n", o.Usage, o.Key, o.Default)
		}
	}
	return b.String()
}
