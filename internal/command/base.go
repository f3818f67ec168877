package command

import (
	"context"
	"flag"
	"io"
)

// Command is a relayframe subcommand.
type Command interface {
	Name() string
	Description() string
	Usage() string

	// SetupFlags registers the command's flags on fs before parsing.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command with the arguments left after flag parsing.
	// Query commands abort when ctx is done.
	Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

// BaseCommand holds the descriptive fields every command shares.
type BaseCommand struct {
	name        string
	description string
	usage       string
}

func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{
		name:        name,
		description: description,
		usage:       usage,
	}
}

func (c *BaseCommand) Name() string        { return c.name }
func (c *BaseCommand) Description() string { return c.description }
func (c *BaseCommand) Usage() string       { return c.usage }

// SetupFlags registers nothing.
func (c *BaseCommand) SetupFlags(fs *flag.FlagSet) {}
