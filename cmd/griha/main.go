package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adda-Baaj/griha/internal/app"
	"github.com/Adda-Baaj/griha/internal/cli"
	"github.com/Adda-Baaj/griha/internal/config"
	"github.com/Adda-Baaj/griha/internal/logger"
)

// Injected at build time via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "griha: %v\n", err)
		if errors.Is(err, cli.ErrRequestsFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("griha starting", "build", map[string]string{"version": version, "api_url": cfg.APIURL})
	logger.DebugObj("configuration loaded", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := cli.DefaultEnv(func(ctx context.Context, page string) (cli.Runtime, error) {
		a, err := app.New(ctx, cfg, log, page)
		if err != nil {
			logger.ErrorObj("failed to initialize runtime", "error", err)
			return nil, err
		}
		return a, nil
	})

	err = cli.NewRootCmd(env, version).ExecuteContext(ctx)
	if errors.Is(err, cli.ErrRequestsFailed) {
		logger.WarnObj("some requests failed", "error", err)
	}
	return err
}
