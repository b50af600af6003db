package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/practiceops/servicecatalog/internal/catalogsrv/config"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/dbmanager"
	"github.com/practiceops/servicecatalog/internal/catalogsrv/db/postgresql"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the catalog database schema",
		Long: `Apply the catalog schema to the PostgreSQL database named in the server
configuration. Every statement is idempotent, so running it against an
up to date database changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadServerConfig(); err != nil {
				return err
			}
			return migrate(cmd.Context())
		},
	}
}

func migrate(ctx context.Context) error {
	if driver := config.Config().DB.Driver; driver != config.DBDriverPostgres {
		return fmt.Errorf("migrate needs the %s driver, configured driver is %s", config.DBDriverPostgres, driver)
	}
	ctx = log.Logger.WithContext(ctx)
	sqlDB, err := dbmanager.OpenCatalogDb(ctx)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := postgresql.Migrate(ctx, sqlDB); err != nil {
		return err
	}
	if jsonOutput {
		printJSON(map[string]int{"result": 1})
	} else {
		okLabel.Println("Schema is up to date")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newMigrateCmd())
}
