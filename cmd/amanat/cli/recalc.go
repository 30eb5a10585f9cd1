package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recalcCmd = &cobra.Command{
	Use:   "recalc <customer-id>",
	Short: "Rebuild a customer's running balances from scratch",
	Long: `Recalculates every remaining balance for the customer starting from
zero. Use this after manual database surgery or when the integrity scan
reports violations.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecalc,
}

func init() {
	rootCmd.AddCommand(recalcCmd)
}

func runRecalc(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	customerID, err := parseID(args[0])
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	mctx, cancel := rt.mutationContext(ctx)
	defer cancel()
	if err := rt.ledger.RecalculateCustomer(mctx, customerID); err != nil {
		return err
	}
	fmt.Printf("Customer #%d ledger rebuilt\n", customerID)
	return nil
}
