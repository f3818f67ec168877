package command

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"slices"
	"testing"
)

// recordingCommand records what it was executed with.
type recordingCommand struct {
	*BaseCommand
	verbose bool
	args    []string
	ctx     context.Context
}

func newRecordingCommand(name string) *recordingCommand {
	return &recordingCommand{BaseCommand: NewBaseCommand(name, "Records its arguments", name+" [args]")}
}

func (c *recordingCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", false, "verbose")
}

func (c *recordingCommand) Execute(ctx context.Context, args []string, _, _ io.Writer) error {
	c.ctx = ctx
	c.args = args
	return nil
}

func TestRegistryGetAndList(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(newRecordingCommand("zeta"))
	r.Register(newRecordingCommand("alpha"))

	if got := r.List(); !slices.Equal(got, []string{"alpha", "zeta"}) {
		t.Fatalf("List() = %v", got)
	}
	cmd, err := r.Get("alpha")
	if err != nil || cmd.Name() != "alpha" {
		t.Fatalf("Get(alpha) = %v, %v", cmd, err)
	}
	if _, err := r.Get("missing"); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestRegistryRunParsesFlags(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	cmd := newRecordingCommand("rec")
	r.Register(cmd)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	var stdout, stderr bytes.Buffer
	if err := r.Run(ctx, []string{"rec", "-v", "a", "b"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !cmd.verbose {
		t.Error("flag was not parsed")
	}
	if !slices.Equal(cmd.args, []string{"a", "b"}) {
		t.Errorf("args = %v", cmd.args)
	}
	if cmd.ctx.Value(key{}) != "v" {
		t.Error("context was not passed through")
	}
}

func TestRegistryRunHelpFlag(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.Register(newRecordingCommand("rec"))

	var stdout, stderr bytes.Buffer
	err := r.Run(context.Background(), []string{"rec", "-h"}, &stdout, &stderr)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if !bytes.Contains(stderr.Bytes(), []byte("Usage: relayframe rec [args]")) {
		t.Fatalf("unexpected usage output: %q", stderr.String())
	}
}

func TestRegistryRunNoHelpRegistered(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	if err := NewRegistry().Run(context.Background(), nil, &stdout, &stderr); err == nil {
		t.Fatal("expected error when help is not registered")
	}
}
