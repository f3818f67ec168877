package command

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joeycumines/relayframe/internal/config"
	"github.com/joeycumines/relayframe/internal/logging"
)

const logPollInterval = 200 * time.Millisecond

// LogCommand prints, and optionally follows, the JSON log file.
type LogCommand struct {
	*BaseCommand
	config *config.Config
	follow bool
	lines  int
	file   string
	level  string
}

func NewLogCommand(cfg *config.Config) *LogCommand {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &LogCommand{
		BaseCommand: NewBaseCommand("log", "Show the end of the log file", "log [options]"),
		config:      cfg,
	}
}

func (c *LogCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.follow, "f", false, "Follow the log file as it grows")
	fs.IntVar(&c.lines, "n", 10, "Number of lines to show from the end of the file")
	fs.StringVar(&c.file, "file", "", "Log file path (default from config log.file)")
	fs.StringVar(&c.level, "level", "", "Only show records at or above this level")
}

func (c *LogCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	path := c.file
	if path == "" {
		path = config.DefaultSchema().Resolve(c.config, "log.file")
	}
	if path == "" {
		_, _ = fmt.Fprintln(stderr, "No log file configured. Use --file or set log.file in config.")
		return errors.New("no log file configured")
	}

	filter := func(string) bool { return true }
	if c.level != "" {
		threshold, err := logging.ParseLevel(c.level)
		if err != nil {
			return err
		}
		filter = func(line string) bool { return recordLevel(line) >= threshold }
	}

	pos, err := printTail(path, c.lines, filter, stdout)
	if err != nil || !c.follow {
		return err
	}
	return followLog(ctx, path, pos, filter, stdout)
}

// printTail prints the last n lines of path that pass filter and returns
// the offset just past the last complete line.
func printTail(path string, n int, filter func(string) bool, stdout io.Writer) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// the tail keeps the n most recent matching lines
	tail := make([]string, 0, max(n, 0))
	r := bufio.NewReader(f)
	var pos int64
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			pos += int64(len(line))
			if line = line[:len(line)-1]; filter(line) && n > 0 {
				if len(tail) == n {
					tail = tail[1:]
				}
				tail = append(tail, line)
			}
		} else if len(line) > 0 {
			// partial last line, printed once complete when following
			break
		}
		if err != nil {
			break
		}
	}
	for _, line := range tail {
		_, _ = fmt.Fprintln(stdout, line)
	}
	return pos, nil
}

// followLog prints complete lines appended to path after pos until ctx is
// done. A rotated or truncated file is reopened from the start.
func followLog(ctx context.Context, path string, pos int64, filter func(string) bool, stdout io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if st, err := f.Stat(); err == nil && st.Size() < pos {
		pos = 0
	}
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}
	r := bufio.NewReader(f)
	var partial string

	ticker := time.NewTicker(logPollInterval)
	defer ticker.Stop()
	for {
		for {
			chunk, err := r.ReadString('\n')
			partial += chunk
			if err != nil {
				break
			}
			pos += int64(len(partial))
			if line := partial[:len(partial)-1]; filter(line) {
				_, _ = fmt.Fprintln(stdout, line)
			}
			partial = ""
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if rotated(f, path, pos) {
			nf, err := os.Open(path)
			if err != nil {
				// mid-rotation, retry on the next tick
				continue
			}
			_ = f.Close()
			f = nf
			r.Reset(f)
			pos, partial = 0, ""
		}
	}
}

// rotated reports whether path no longer names f, or was truncated below pos.
func rotated(f *os.File, path string, pos int64) bool {
	pathInfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return true
	}
	return !os.SameFile(pathInfo, fileInfo) || pathInfo.Size() < pos
}

// recordLevel extracts the level of a JSON log record. Lines that are not
// records pass any filter.
func recordLevel(line string) slog.Level {
	var rec struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Level == "" {
		return slog.LevelError + 1
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(rec.Level)); err != nil {
		return slog.LevelError + 1
	}
	return level
}
