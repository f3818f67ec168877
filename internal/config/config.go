package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config is a parsed relayframe config file: global "key value" lines
// followed by optional [command] sections.
type Config struct {
	Global map[string]string
	// Commands holds [section] values keyed by section name.
	Commands map[string]map[string]string
	// Warnings lists schema violations found while loading.
	Warnings []string
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Commands: make(map[string]map[string]string),
	}
}

// Load reads the config file at the default location.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the config file at path. A missing file is an empty
// config. Symlinks are refused.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		return NewConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	case fi.Mode()&os.ModeSymlink != 0:
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses a config from r and validates it against
// DefaultSchema, recording violations as warnings.
func LoadFromReader(r io.Reader) (*Config, error) {
	c := NewConfig()
	values := c.Global

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if name, ok := sectionName(line); ok {
			if name == "" {
				values = c.Global
				continue
			}
			if c.Commands[name] == nil {
				c.Commands[name] = make(map[string]string)
			}
			values = c.Commands[name]
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		values[key] = strings.TrimSpace(value)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range DefaultSchema().Validate(c) {
		c.Warnings = append(c.Warnings, issue)
		slog.Warn("[Config] " + issue)
	}
	return c, nil
}

func sectionName(line string) (string, bool) {
	if rest, ok := strings.CutPrefix(line, "["); ok {
		if name, ok := strings.CutSuffix(rest, "]"); ok {
			return strings.TrimSpace(name), true
		}
	}
	return "", false
}

// GetGlobalOption reports the value set for name outside any section.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	v, ok := c.Global[name]
	return v, ok
}

// GetCommandOption reports the value set for name inside the [command]
// section. Global values are not consulted; Schema.ResolveCommand layers
// those in with their environment overrides.
func (c *Config) GetCommandOption(command, name string) (string, bool) {
	v, ok := c.Commands[command][name]
	return v, ok
}

func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

func (c *Config) SetCommandOption(command, name, value string) {
	if c.Commands[command] == nil {
		c.Commands[command] = make(map[string]string)
	}
	c.Commands[command][name] = value
}

func (c *Config) HasWarnings() bool { return len(c.Warnings) > 0 }
