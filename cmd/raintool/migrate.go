package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anisahjamin/CPC357-Assignment2/internal/app"
	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
	"github.com/anisahjamin/CPC357-Assignment2/internal/db"
	"github.com/anisahjamin/CPC357-Assignment2/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded SQLite migrations (postgres and mongo: ensure schema and indexes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := fromCmd(cmd)
			ctx := cmd.Context()

			if c.cfg.StoreDriver != config.DriverSQLite {
				st, err := app.OpenStore(ctx, c.cfg, c.logger)
				if err != nil {
					return err
				}
				defer st.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "%s schema ready\n", c.cfg.StoreDriver)
				return nil
			}

			sqlDB, err := db.Open(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer db.Close(sqlDB)

			applied, err := migrate.Run(ctx, sqlDB, c.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}
}
