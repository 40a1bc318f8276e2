package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"basegraph.app/faultline/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema (pgvector extension, failure_patterns table, indexes)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.New(cmd.Context(), cfg.DB)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.Migrate(cmd.Context(), cfg.Embedding.Dimensions); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema applied (vector dimensions: %d)\n", cfg.Embedding.Dimensions)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
