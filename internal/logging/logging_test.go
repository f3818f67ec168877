package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joeycumines/relayframe/internal/config"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

func clearLogEnv(t *testing.T) {
	unsetEnv(t, "RELAYFRAME_LOG_FILE")
	unsetEnv(t, "RELAYFRAME_LOG_LEVEL")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestResolve_Defaults(t *testing.T) {
	clearLogEnv(t)

	opts, err := Resolve("", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Level != slog.LevelInfo || opts.File != "" {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
	if opts.MaxSizeMB != 10 || opts.MaxFiles != 5 {
		t.Fatalf("unexpected rotation defaults: %+v", opts)
	}
}

func TestResolve_ConfigValues(t *testing.T) {
	clearLogEnv(t)

	cfg := config.NewConfig()
	cfg.SetGlobalOption("log.level", "warn")
	cfg.SetGlobalOption("log.file", "/tmp/relay.log")
	cfg.SetGlobalOption("log.max-size-mb", "3")
	cfg.SetGlobalOption("log.max-files", "0")

	opts, err := Resolve("", "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := Options{Level: slog.LevelWarn, File: "/tmp/relay.log", MaxSizeMB: 3, MaxFiles: 0}
	if opts != want {
		t.Fatalf("got %+v, want %+v", opts, want)
	}
}

func TestResolve_FlagsWin(t *testing.T) {
	clearLogEnv(t)

	cfg := config.NewConfig()
	cfg.SetGlobalOption("log.level", "warn")
	cfg.SetGlobalOption("log.file", "/should/not/use")

	opts, err := Resolve("/tmp/flag.log", "debug", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Level != slog.LevelDebug || opts.File != "/tmp/flag.log" {
		t.Fatalf("flags did not win: %+v", opts)
	}
}

func TestResolve_EnvOverridesConfig(t *testing.T) {
	clearLogEnv(t)
	t.Setenv("RELAYFRAME_LOG_LEVEL", "error")

	cfg := config.NewConfig()
	cfg.SetGlobalOption("log.level", "debug")

	opts, err := Resolve("", "", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Level != slog.LevelError {
		t.Fatalf("level = %v, want error", opts.Level)
	}
}

func TestResolve_InvalidLevel(t *testing.T) {
	clearLogEnv(t)
	if _, err := Resolve("", "loud", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_Stderr(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: slog.LevelWarn}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	logger.Info("[Relay] hidden")
	logger.Warn("[Relay] shown", "slot", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked past warn level: %q", out)
	}
	if !strings.Contains(out, "[Relay] shown") || !strings.Contains(out, "slot=3") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestNew_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "relay.log")

	logger, closer, err := New(Options{Level: slog.LevelDebug, File: path, MaxSizeMB: 1, MaxFiles: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("[Engine] query finished", "op", "select")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v: %q", err, data)
	}
	if rec["msg"] != "[Engine] query finished" || rec["op"] != "select" {
		t.Fatalf("unexpected record: %v", rec)
	}
}
