package main

import (
	"github.com/spf13/cobra"

	"fraud-ledger/internal/infrastructure/database/store"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := store.NewClient(c.cfg.Database, c.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			c.logger.Info("running database migrations")
			if err := client.Migrate(cmd.Context()); err != nil {
				return err
			}
			c.logger.Info("database migrations completed")
			return nil
		},
	}
}
