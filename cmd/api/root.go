package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fraud-ledger/internal/app"
	"fraud-ledger/internal/pkg/config"
	"fraud-ledger/internal/pkg/logger"
)

// cli carries the state shared by every command
type cli struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "fraud-ledger",
		Short:        "Event-sourced transaction ledger with behavioral fraud scoring",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newProjectCmd(c),
		newRebuildCmd(c),
		newTrainCmd(c),
		newRescoreCmd(c),
	)
	return root
}

// withApp wires the application for one command and closes it afterwards
func (c *cli) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, c.cfg, c.logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			c.logger.Warn("failed to close connections", zap.Error(err))
		}
	}()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
