package main

import (
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create tables and indexes for the configured stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.container.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		a.logger.Info("schema ready", "driver", a.cfg.Store.Driver)
		return nil
	},
}
