package main

import (
	"github.com/spf13/cobra"

	"fraud-ledger/internal/app"
)

func newTrainCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Fit and activate a new anomaly model over every completed transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				model, err := a.Train.Execute(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), model)
			})
		},
	}
}

func newRescoreCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore",
		Short: "Re-score every completed transaction with the active model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				summary, err := a.Rescore.Execute(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
}
