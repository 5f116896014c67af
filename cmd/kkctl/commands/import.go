package commands

import (
	"fmt"

	"kleiderkammer/internal/domain"
	"kleiderkammer/internal/repository"
	"kleiderkammer/internal/service"
	"kleiderkammer/internal/spreadsheet"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Import products from the first sheet of a workbook",
	Long: `Create one unassigned product per row of the first sheet. Column A holds
the name and column B the size. Rows missing either are skipped. The whole
file is imported in one transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := spreadsheet.OpenFile(args[0])
		if err != nil {
			return err
		}

		db, err := openDatabase()
		if err != nil {
			rows.Close()
			return err
		}
		defer db.Close()

		// the CLI acts with admin rights
		caller := domain.Caller{Role: domain.RoleAdmin, Username: "kkctl"}
		result, err := service.NewImportService(repository.NewStore(db.DB())).Import(cmd.Context(), caller, rows)
		if err != nil {
			return err
		}

		log.Info("Workbook imported",
			zap.String("file", args[0]),
			zap.Int("examined", result.Examined),
			zap.Int("imported", result.Imported),
			zap.Int("skipped", result.Skipped),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "examined %d rows, imported %d products, skipped %d rows\n",
			result.Examined, result.Imported, result.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
