package main

import (
	"github.com/spf13/cobra"

	"basegraph.app/faultline/common/id"
	"basegraph.app/faultline/common/logger"
	"basegraph.app/faultline/core/config"
)

var rootCmd = &cobra.Command{
	Use:   "faultline",
	Short: "Fingerprint CI failures, match them against history and recommend tests",
	Long: `faultline is the operator CLI for the failure triage service.

It runs the same pipeline as the API offline against a local SQLite file or an
in-memory store, and manages the Postgres schema and credit ledger.`,
	SilenceUsage: true,
}

// loadConfig reads the CLI configuration and prepares logging and ids.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		return config.Config{}, err
	}
	logger.Setup(cfg)
	if err := id.Init(cfg.NodeID); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
