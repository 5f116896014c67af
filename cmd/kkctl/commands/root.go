package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"kleiderkammer/internal/config"
	"kleiderkammer/internal/database"
	"kleiderkammer/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	envFile string
	verbose bool

	cfg *config.Config
	log *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kkctl",
	Short: "Administration tool for the Kleiderkammer catalog",
	Long: `kkctl runs maintenance tasks against the Kleiderkammer database.

Commands:
  migrate          - Apply, roll back or inspect schema migrations
  bootstrap-admin  - Create the admin account if none exists
  import           - Import products from an .xlsx workbook
  sessions purge   - Delete logged out and expired refresh tokens`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
		}

		cfg = config.Load()

		level := cfg.Server.LogLevel
		if verbose {
			level = "debug"
		}
		var err error
		log, err = logger.New(cfg.Server.Env, level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file before reading the configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

// openDatabase connects with the loaded configuration. The caller closes it.
func openDatabase() (database.Service, error) {
	return database.New(cfg.Database)
}
