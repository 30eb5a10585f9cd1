package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanat-app/ledger/internal/ledger"
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Record and manage ledger entries",
}

var entryAddCmd = &cobra.Command{
	Use:   "add <customer-id>",
	Short: "Record a ledger entry (charge, payment, or both)",
	Example: `  # A purchase of 5000 on credit
  amanat entry add 12 --due 5000

  # A payment of 2000 received today
  amanat entry add 12 --paid 2000

  # A backdated delivery with commission
  amanat entry add 12 --due 5000 --commission 250 --date 2025-07-01`,
	Args: cobra.ExactArgs(1),
	RunE: runEntryAdd,
}

var entryChargeCmd = &cobra.Command{
	Use:   "charge <customer-id> <amount>",
	Short: "Record a debt the customer owes",
	Args:  cobra.ExactArgs(2),
	RunE:  runEntryCharge,
}

var entryPayCmd = &cobra.Command{
	Use:   "pay <customer-id> <amount>",
	Short: "Record a payment received from the customer",
	Args:  cobra.ExactArgs(2),
	RunE:  runEntryPay,
}

var entryUpdateCmd = &cobra.Command{
	Use:   "update <entry-id>",
	Short: "Edit an entry; later balances are recomputed",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntryUpdate,
}

var entryDeleteCmd = &cobra.Command{
	Use:   "delete <entry-id>",
	Short: "Delete an entry; later balances are recomputed",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntryDelete,
}

var entryListCmd = &cobra.Command{
	Use:   "list <customer-id>",
	Short: "Show a customer's ledger oldest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntryList,
}

func init() {
	rootCmd.AddCommand(entryCmd)
	entryCmd.AddCommand(entryAddCmd, entryChargeCmd, entryPayCmd, entryUpdateCmd, entryDeleteCmd, entryListCmd)

	entryAddCmd.Flags().Int64("due", 0, "Amount the customer owes")
	entryAddCmd.Flags().Int64("paid", 0, "Amount the customer paid")
	entryAddCmd.Flags().Int64("commission", 0, "Commission added on top of the due amount")
	entryAddCmd.Flags().String("date", "", "Business date (YYYY-MM-DD, default: today)")
	entryAddCmd.Flags().String("notes", "", "Free-form notes")

	for _, c := range []*cobra.Command{entryChargeCmd, entryPayCmd} {
		c.Flags().Int64("commission", 0, "Commission added on top of the due amount")
		c.Flags().String("date", "", "Business date (YYYY-MM-DD, default: today)")
		c.Flags().String("notes", "", "Free-form notes")
	}

	entryUpdateCmd.Flags().Int64("due", 0, "New due amount")
	entryUpdateCmd.Flags().Int64("paid", 0, "New paid amount")
	entryUpdateCmd.Flags().Int64("commission", 0, "New commission (omitted keeps the stored one)")
	entryUpdateCmd.Flags().String("date", "", "New business date (YYYY-MM-DD)")
	entryUpdateCmd.Flags().String("notes", "", "New notes")
}

func runEntryAdd(cmd *cobra.Command, args []string) error {
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

	input := ledger.CreateEntryInput{CustomerID: customerID}
	input.AmountDue, _ = cmd.Flags().GetInt64("due")
	input.AmountPaid, _ = cmd.Flags().GetInt64("paid")
	input.CommissionAmount, _ = cmd.Flags().GetInt64("commission")
	input.Notes = optionalFlag(cmd, "notes")
	if input.DueDate, err = parseDateFlag(cmd, "date"); err != nil {
		return err
	}

	mctx, cancel := rt.mutationContext(ctx)
	defer cancel()
	entry, err := rt.ledger.CreateEntry(mctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("Entry #%d recorded, balance now %d\n", entry.ID, entry.RemainingAmount)
	return nil
}

func runEntryCharge(cmd *cobra.Command, args []string) error {
	return runSingleAmountEntry(cmd, args, func(input *ledger.CreateEntryInput, amount int64) {
		input.AmountDue = amount
	})
}

func runEntryPay(cmd *cobra.Command, args []string) error {
	return runSingleAmountEntry(cmd, args, func(input *ledger.CreateEntryInput, amount int64) {
		input.AmountPaid = amount
	})
}

func runSingleAmountEntry(cmd *cobra.Command, args []string, apply func(*ledger.CreateEntryInput, int64)) error {
	ctx := cmd.Context()
	customerID, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("invalid amount %q", args[1])
	}
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	input := ledger.CreateEntryInput{CustomerID: customerID}
	apply(&input, amount)
	input.CommissionAmount, _ = cmd.Flags().GetInt64("commission")
	input.Notes = optionalFlag(cmd, "notes")
	if input.DueDate, err = parseDateFlag(cmd, "date"); err != nil {
		return err
	}

	mctx, cancel := rt.mutationContext(ctx)
	defer cancel()
	entry, err := rt.ledger.CreateEntry(mctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("Entry #%d recorded, balance now %d\n", entry.ID, entry.RemainingAmount)
	return nil
}

func runEntryUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	entryID, err := parseID(args[0])
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	input := ledger.UpdateEntryInput{EntryID: entryID}
	input.AmountDue = changedInt64Flag(cmd, "due")
	input.AmountPaid = changedInt64Flag(cmd, "paid")
	input.CommissionAmount = changedInt64Flag(cmd, "commission")
	input.Notes = changedFlag(cmd, "notes")
	if cmd.Flags().Changed("date") {
		date, err := parseDateFlag(cmd, "date")
		if err != nil {
			return err
		}
		input.DueDate = &date
	}

	mctx, cancel := rt.mutationContext(ctx)
	defer cancel()
	entry, err := rt.ledger.UpdateEntry(mctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("Entry #%d updated, balance after it is now %d\n", entry.ID, entry.RemainingAmount)
	return nil
}

func runEntryDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	entryID, err := parseID(args[0])
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
	if err := rt.ledger.DeleteEntry(mctx, entryID); err != nil {
		return err
	}
	fmt.Printf("Entry #%d deleted\n", entryID)
	return nil
}

func runEntryList(cmd *cobra.Command, args []string) error {
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

	entries, err := rt.ledger.ListEntries(ctx, customerID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No entries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tDUE\tPAID\tCOMMISSION\tBALANCE\tNOTES")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%s\n",
			e.ID, e.DueDate.Format("2006-01-02"),
			e.AmountDue, e.AmountPaid, e.CommissionAmount, e.RemainingAmount,
			stringOrDash(e.Notes))
	}
	return w.Flush()
}

func parseDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return date, nil
}

func changedInt64Flag(cmd *cobra.Command, name string) *int64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetInt64(name)
	return &value
}
