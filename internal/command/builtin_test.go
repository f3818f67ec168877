package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/relayframe/internal/config"
)

func newTestRegistry(cfg *config.Config) *Registry {
	r := NewRegistry()
	r.Register(NewHelpCommand(r))
	r.Register(NewVersionCommand("1.2.3"))
	r.Register(NewConfigCommand(cfg, ""))
	r.Register(NewInfoCommand(cfg))
	return r
}

func TestHelpCommandListsCommands(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(config.NewConfig())

	var stdout, stderr bytes.Buffer
	if err := r.Run(context.Background(), nil, &stdout, &stderr); err != nil {
		t.Fatalf("help returned error: %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"Available commands", "version", "config", "info"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected help output to contain %q, got %q", want, out)
		}
	}
	if stderr.Len() != 0 {
		t.Fatalf("expected no stderr output, got %q", stderr.String())
	}
}

func TestHelpCommandShowsFlags(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(config.NewConfig())

	var stdout, stderr bytes.Buffer
	if err := r.Run(context.Background(), []string{"help", "config"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	out := stdout.String()
	if !strings.Contains(out, "Command: config") || !strings.Contains(out, "-global") {
		t.Fatalf("unexpected help output: %q", out)
	}
}

func TestRegistryUnknownCommand(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(config.NewConfig())

	var stdout, stderr bytes.Buffer
	if err := r.Run(context.Background(), []string{"nope"}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(stderr.String(), "Unknown command: nope") {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(config.NewConfig())

	var stdout, stderr bytes.Buffer
	if err := r.Run(context.Background(), []string{"version"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != "relayframe version 1.2.3\n" {
		t.Fatalf("unexpected output: %q", got)
	}
	if err := r.Run(context.Background(), []string{"version", "extra"}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for extra arguments")
	}
}

func TestConfigCommandGetSet(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config")
	cfg := config.NewConfig()
	cmd := NewConfigCommand(cfg, path)

	var stdout, stderr bytes.Buffer
	if err := cmd.Execute(context.Background(), []string{"chunk-size", "64"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if v, _ := cfg.GetGlobalOption("chunk-size"); v != "64" {
		t.Fatalf("chunk-size = %q, want 64", v)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config was not persisted: %v", err)
	}
	if !strings.Contains(string(data), "chunk-size 64") {
		t.Fatalf("unexpected file content: %q", data)
	}

	stdout.Reset()
	if err := cmd.Execute(context.Background(), []string{"chunk-size"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != "chunk-size: 64\n" {
		t.Fatalf("unexpected get output: %q", got)
	}

	stdout.Reset()
	if err := cmd.Execute(context.Background(), []string{"no.such.key"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "not found") {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestConfigCommandShowAllSorted(t *testing.T) {
	t.Parallel()
	cfg := config.NewConfig()
	cfg.SetGlobalOption("threads", "2")
	cfg.SetGlobalOption("color", "never")
	cfg.SetCommandOption("groupby", "maintain-order", "true")

	cmd := NewConfigCommand(cfg, "")
	cmd.showAll = true

	var stdout, stderr bytes.Buffer
	if err := cmd.Execute(context.Background(), nil, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	out := stdout.String()
	if strings.Index(out, "color") > strings.Index(out, "threads") {
		t.Fatalf("global keys not sorted: %q", out)
	}
	if !strings.Contains(out, "[groupby]") || !strings.Contains(out, "maintain-order: true") {
		t.Fatalf("missing command section: %q", out)
	}
}

func TestConfigCommandValidate(t *testing.T) {
	t.Parallel()
	cfg := config.NewConfig()
	cfg.SetGlobalOption("threads", "lots")

	var stdout, stderr bytes.Buffer
	if err := NewConfigCommand(cfg, "").Execute(context.Background(), []string{"validate"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "1 issue(s)") {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestConfigCommandSchema(t *testing.T) {
	t.Parallel()
	var stdout, stderr bytes.Buffer
	if err := NewConfigCommand(config.NewConfig(), "").Execute(context.Background(), []string{"schema"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	out := stdout.String()
	if !strings.Contains(out, "chunk-size") || !strings.Contains(out, "[groupby] Options:") {
		t.Fatalf("unexpected schema output: %q", out)
	}
}

func TestInitCommand(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sub", "config")
	cmd := NewInitCommand(path)

	var stdout, stderr bytes.Buffer
	if err := cmd.Execute(context.Background(), nil, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if stderr.Len() != 0 {
		t.Fatalf("unexpected stderr: %q", stderr.String())
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Global) != 0 {
		t.Fatalf("default file should only hold comments, got %v", cfg.Global)
	}
	if _, ok := cfg.Commands["groupby"]; !ok {
		t.Fatalf("expected [groupby] section, got %v", cfg.Commands)
	}

	stdout.Reset()
	if err := cmd.Execute(context.Background(), nil, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "already exists") {
		t.Fatalf("expected existing config to be kept, got %q", stdout.String())
	}
}

func TestInfoCommand(t *testing.T) {
	t.Parallel()
	cfg := config.NewConfig()
	cfg.SetGlobalOption("threads", "1")
	r := newTestRegistry(cfg)

	var stdout, stderr bytes.Buffer
	if err := r.Run(context.Background(), []string{"info"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	out := stdout.String()
	if !strings.Contains(out, "thread pool size:") || !strings.Contains(out, "default") {
		t.Fatalf("unexpected info output: %q", out)
	}

	stdout.Reset()
	if err := r.Run(context.Background(), []string{"info", "--json"}, &stdout, &stderr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), `"threadPoolSize": 1`) {
		t.Fatalf("unexpected json: %q", stdout.String())
	}
}
