package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "amanat",
	Short: "Amanat - customer debt ledger for small shops",
	Long: `Amanat tracks customer debts as an append-friendly ledger of dated
entries. Every entry records an amount due, an amount paid and an
optional commission, and carries the customer's running balance after
that entry. Editing or deleting history recomputes every later balance.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
