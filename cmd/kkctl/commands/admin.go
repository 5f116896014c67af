package commands

import (
	"fmt"

	"kleiderkammer/internal/repository"
	"kleiderkammer/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create the admin account if none exists",
	Long: `Create the admin account from ADMIN_USERNAME, ADMIN_PASSWORD and
ADMIN_BEKLEIDUNGSNUMMER. Nothing happens when an admin already exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		users := service.NewUserService(repository.NewStore(db.DB()), service.TokenSettings{Secret: cfg.JWT.Secret})
		created, err := users.EnsureAdmin(cmd.Context(), cfg.Admin.Username, cfg.Admin.Password, cfg.Admin.Bekleidungsnummer)
		if err != nil {
			return err
		}

		if created {
			log.Info("Admin account created", zap.String("username", cfg.Admin.Username))
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %q\n", cfg.Admin.Username)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "admin account already exists")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bootstrapAdminCmd)
}
