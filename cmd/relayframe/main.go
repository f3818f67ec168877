package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joeycumines/relayframe/internal/command"
	"github.com/joeycumines/relayframe/internal/config"
	"github.com/joeycumines/relayframe/internal/info"
	"github.com/joeycumines/relayframe/internal/logging"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath, _ := config.GetConfigPath()
	cfg, err := config.Load()
	if err != nil {
		// missing or unreadable config means defaults
		cfg = config.NewConfig()
	}

	logOpts, err := logging.Resolve("", "", cfg)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(logOpts, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if name := config.DefaultSchema().Resolve(cfg, "package-name"); name != "" && name != info.DefaultPackageName {
		if err := info.SetPackageName(name); err != nil {
			return err
		}
	}

	registry := command.NewRegistry()
	registry.Register(command.NewHelpCommand(registry))
	registry.Register(command.NewVersionCommand(info.Version))
	registry.Register(command.NewConfigCommand(cfg, configPath))
	registry.Register(command.NewInitCommand(configPath))
	registry.Register(command.NewInfoCommand(cfg))
	registry.Register(command.NewLogCommand(cfg))
	registry.Register(command.NewSelectCommand(cfg))
	registry.Register(command.NewGroupByCommand(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return registry.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
