package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/infrastructure/config"
	"github.com/vsinha/shopfloor/pkg/infrastructure/logging"
	"github.com/vsinha/shopfloor/pkg/interfaces/cli/commands"
)

func main() {
	var (
		configFile = flag.String("config", "shopfloor.yaml", "Path to YAML config file")
		envFile    = flag.String("env", ".env", "Path to .env file")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := commands.NewApp(cfg, logger, os.Stdout)
	if err := app.Run(ctx, flag.Args()); err != nil {
		logger.Debug("command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code := 1
		if errors.Is(err, commands.ErrUsage) {
			code = 2
		}
		stop()
		_ = logger.Sync()
		os.Exit(code)
	}
}
