package main

import (
	"github.com/spf13/cobra"

	"fraud-ledger/internal/app"
	"fraud-ledger/internal/application/dto"
)

func newProjectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "project [name]",
		Short: "Process new events into one projection, or run the whole pipeline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if len(args) == 1 {
					res, err := a.Engine.ProcessNewEvents(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), dto.ProjectionResponse{
						Projection: res.Projection,
						Applied:    res.Applied,
						Skipped:    res.Skipped,
						Checkpoint: res.Checkpoint,
					})
				}

				stage, err := a.Pipeline.Run(cmd.Context())
				if err != nil {
					return err
				}
				out := map[string]any{"scoring": stage}
				for _, name := range a.Engine.Names() {
					cp, err := a.Engine.Checkpoint(cmd.Context(), name)
					if err != nil {
						return err
					}
					out[name] = cp
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func newRebuildCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <name>",
		Short: "Truncate a projection's tables and replay the whole log into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Engine.RebuildProjection(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.ProjectionResponse{
					Projection: res.Projection,
					Applied:    res.Applied,
					Skipped:    res.Skipped,
					Checkpoint: res.Checkpoint,
				})
			})
		},
	}
}
