package cli

import (
	"fmt"

	"github.com/billbatista/acasinha-splits/database"
	"github.com/spf13/cobra"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var down, status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Applies pending migrations. --down rolls back the latest one and --status prints the current version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if down && status {
				return fmt.Errorf("--down and --status can't be combined")
			}
			cfg := rootOpts.cfg
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			db, err := database.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			switch {
			case down:
				if err := database.Rollback(db); err != nil {
					return err
				}
			case !status:
				if err := database.Migrate(db); err != nil {
					return err
				}
			}

			version, err := database.Version(db)
			if err != nil {
				return fmt.Errorf("reading schema version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	cmd.Flags().BoolVar(&status, "status", false, "print the schema version without migrating")

	return cmd
}
