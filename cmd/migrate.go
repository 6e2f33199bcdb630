// File: cmd/migrate.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/merchant-enroll/internal/store"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return store.MigrateUp(a.cfg.Database.URL, a.logger)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert all migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return store.MigrateDown(a.cfg.Database.URL, a.logger)
			},
		},
	)
	return cmd
}
