package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Inspect budget accountant settings",
}

var budgetRatesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Print the configured per-model cost rate table",
	Long: `rates prints the rate table the budget accountant prices token
usage against, so operators can audit remaining(session) projections
before launching a session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureRuntime(); err != nil {
			return err
		}
		rates := rt.Budget.Rates()

		if cfg.Output == "json" || cfg.Output == "jsonl" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rates)
		}

		models := make([]string, 0, len(rates))
		for m := range rates {
			models = append(models, m)
		}
		sort.Strings(models)
		fmt.Printf("%-20s %-18s %-18s\n", "model", "input/token", "output/token")
		for _, m := range models {
			rate := rates[m]
			fmt.Printf("%-20s %-18.6f %-18.6f\n", m, rate.InputPerToken, rate.OutputPerToken)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	budgetCmd.AddCommand(budgetRatesCmd)
}
