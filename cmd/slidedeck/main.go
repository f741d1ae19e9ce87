package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"slidedeck-ai/internal/app"
	"slidedeck-ai/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:           "slidedeck",
		Short:         "Turn documents into grounded slide decks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(generateCmd())
	root.AddCommand(outlineCmd())
	root.AddCommand(regenerateCmd())
	root.AddCommand(batchCmd())
	root.AddCommand(statsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration, configures logging on stderr and wires the pipeline.
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	tuning, err := config.LoadTuning(cfg.PipelineConfig)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, tuning)
}
