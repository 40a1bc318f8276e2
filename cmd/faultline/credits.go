package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"basegraph.app/faultline/internal/service"
)

var (
	creditsScope  string
	creditsAmount int64
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect or top up a scope's credit balance",
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the remaining credits of a scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, closeFn, err := openLedger()
		if err != nil {
			return err
		}
		defer closeFn()

		balance, err := ledger.Balance(cmd.Context(), creditsScope)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", creditsScope, balance)
		return nil
	},
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Add credits to a scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, closeFn, err := openLedger()
		if err != nil {
			return err
		}
		defer closeFn()

		balance, err := ledger.Grant(cmd.Context(), creditsScope, creditsAmount)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", creditsScope, balance)
		return nil
	},
}

func init() {
	creditsCmd.PersistentFlags().StringVar(&creditsScope, "scope", "", "Scope whose balance to use")
	_ = creditsCmd.MarkPersistentFlagRequired("scope")
	creditsGrantCmd.Flags().Int64Var(&creditsAmount, "amount", 100, "Credits to add")

	creditsCmd.AddCommand(creditsBalanceCmd, creditsGrantCmd)
	rootCmd.AddCommand(creditsCmd)
}

func openLedger() (service.CreditLedger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return service.NewRedisCreditLedger(client, cfg.Credits.KeyPrefix), func() { _ = client.Close() }, nil
}
