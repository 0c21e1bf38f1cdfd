package main

import (
	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the PostgreSQL schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && args[0] == "down" {
				return database.MigrateDown(a.cfg.Postgres)
			}
			return database.Migrate(a.cfg.Postgres)
		},
	}
}
