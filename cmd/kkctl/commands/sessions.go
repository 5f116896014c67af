package commands

import (
	"fmt"

	"kleiderkammer/internal/repository"
	"kleiderkammer/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage login sessions",
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete logged out and expired refresh tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		users := service.NewUserService(repository.NewStore(db.DB()), service.TokenSettings{Secret: cfg.JWT.Secret})
		purged, err := users.PurgeSessions(cmd.Context())
		if err != nil {
			return err
		}

		log.Info("Sessions purged", zap.Int64("count", purged))
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d sessions\n", purged)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsPurgeCmd)
	rootCmd.AddCommand(sessionsCmd)
}
