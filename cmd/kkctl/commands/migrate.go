package commands

import (
	"fmt"

	"kleiderkammer/internal/database"

	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
	Long: `Manage the embedded database migrations.

Subcommands:
  up      - Apply pending migrations
  down    - Roll back the latest migration
  status  - Show migration status`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		return database.RunMigrations(cmd.Context(), db.DB(), log)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()
		return database.RollbackMigration(cmd.Context(), db.DB(), log)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		states, err := database.MigrationStatus(cmd.Context(), db.DB())
		if err != nil {
			return err
		}
		for _, state := range states {
			applied := "pending"
			if state.Applied {
				applied = "applied"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%05d  %-8s %s\n", state.Version, applied, state.Source)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}
