package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/tagherald/tagherald/tagherald"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database and run migrations",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		if cfg.DatabaseType == "" {
			log.Fatal("Environment variable TH_DATABASE_TYPE not set (must be one of: sqlite, postgres)")
		}
		if cfg.Database == "" {
			log.Fatal(
				"Environment variable TH_DATABASE not set (must be a valid " +
					"database connection string or sqlite file path)",
			)
		}

		db, err := tagherald.CreateDB(ctx, cfg.DatabaseType, cfg.Database, nil)
		if err != nil {
			log.Fatalf("Error creating database: %v", err)
		}

		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}

		fmt.Fprintln(
			cmd.OutOrStdout(),
			"Initialization complete. You can now start the bot with the 'run' subcommand.",
		)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
