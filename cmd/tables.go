package main

import (
	"github.com/spf13/cobra"

	"procodus.dev/voltage/internal/config"
	"procodus.dev/voltage/internal/store/dynamo"
	"procodus.dev/voltage/internal/store/postgres"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Manage the report tables",
}

var tablesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the report tables when they do not exist",
	Long: `Create the reports and last reports tables of the configured backend.
DynamoDB tables are created on demand billing; PostgreSQL tables are migrated.`,
	RunE: runTablesCreate,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.AddCommand(tablesCreateCmd)
}

func runTablesCreate(cmd *cobra.Command, _ []string) error {
	logger := GetLogger()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		client, err := dynamo.NewClient(cmd.Context(), dynamo.ClientConfig{
			Region:       cfg.Store.Region,
			Endpoint:     cfg.Store.Endpoint,
			ReportsTable: cfg.Store.ReportsTable,
		})
		if err != nil {
			return err
		}
		return dynamo.EnsureTables(cmd.Context(), client, cfg.Store.ReportsTable, cfg.Store.LastReportsTable, logger)

	case config.BackendPostgres:
		pg := cfg.Store.Postgres
		// NewDB migrates the tables
		db, err := postgres.NewDB(&postgres.DBConfig{
			Logger:   logger,
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			DBName:   pg.Name,
			SSLMode:  pg.SSLMode,
		})
		if err != nil {
			return err
		}
		return postgres.CloseDB(db, logger)

	default:
		logger.Info("store backend has no tables", "store", cfg.Store.Backend)
		return nil
	}
}
