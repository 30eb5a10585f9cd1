package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amanat-app/ledger/internal/customers"
)

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Manage customers",
}

var customerAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a new customer",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomerAdd,
}

var customerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers with their outstanding balances",
	Args:  cobra.NoArgs,
	RunE:  runCustomerList,
}

var customerShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one customer",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomerShow,
}

var customerUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a customer's profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomerUpdate,
}

var customerDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a customer and their whole ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomerDelete,
}

func init() {
	rootCmd.AddCommand(customerCmd)
	customerCmd.AddCommand(customerAddCmd, customerListCmd, customerShowCmd, customerUpdateCmd, customerDeleteCmd)

	customerAddCmd.Flags().String("phone", "", "Phone number")
	customerAddCmd.Flags().String("address", "", "Address")
	customerAddCmd.Flags().String("notes", "", "Free-form notes")

	customerListCmd.Flags().String("name", "", "Filter by name substring")
	customerListCmd.Flags().String("phone", "", "Filter by exact phone number")
	customerListCmd.Flags().Int("page", 1, "Page number")
	customerListCmd.Flags().Int("per-page", 20, "Customers per page")

	customerUpdateCmd.Flags().String("name", "", "New name")
	customerUpdateCmd.Flags().String("phone", "", "New phone number")
	customerUpdateCmd.Flags().String("address", "", "New address")
	customerUpdateCmd.Flags().String("notes", "", "New notes")
}

func runCustomerAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	input := customers.CreateCustomerInput{Name: args[0]}
	input.Phone = optionalFlag(cmd, "phone")
	input.Address = optionalFlag(cmd, "address")
	input.Notes = optionalFlag(cmd, "notes")

	customer, err := rt.customers.CreateCustomer(ctx, input)
	if err != nil {
		return err
	}
	fmt.Printf("Customer #%d %q created\n", customer.ID, customer.Name)
	return nil
}

func runCustomerList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := customers.ListCustomersRequest{}
	req.Name, _ = cmd.Flags().GetString("name")
	req.Phone, _ = cmd.Flags().GetString("phone")
	req.Page, _ = cmd.Flags().GetInt("page")
	req.PerPage, _ = cmd.Flags().GetInt("per-page")

	list, page, err := rt.customers.ListCustomers(ctx, req)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tBALANCE\tSETTLED FOR")
	for _, c := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, stringOrDash(c.Phone), balanceOrDash(c.RemainingAmount), settledFor(c.DaysSinceSettled))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("Page %d/%d, %d customers total\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func runCustomerShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	customer, err := rt.customers.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Customer #%d\n", customer.ID)
	fmt.Printf("  Name:    %s\n", customer.Name)
	fmt.Printf("  Phone:   %s\n", stringOrDash(customer.Phone))
	fmt.Printf("  Address: %s\n", stringOrDash(customer.Address))
	fmt.Printf("  Notes:   %s\n", stringOrDash(customer.Notes))
	fmt.Printf("  Balance: %s\n", balanceOrDash(customer.RemainingAmount))
	return nil
}

func runCustomerUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	input := customers.UpdateCustomerInput{
		Name:    changedFlag(cmd, "name"),
		Phone:   changedFlag(cmd, "phone"),
		Address: changedFlag(cmd, "address"),
		Notes:   changedFlag(cmd, "notes"),
	}
	customer, err := rt.customers.UpdateCustomer(ctx, id, input)
	if err != nil {
		return err
	}
	fmt.Printf("Customer #%d %q updated\n", customer.ID, customer.Name)
	return nil
}

func runCustomerDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseID(args[0])
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
	if err := rt.customers.DeleteCustomer(mctx, id); err != nil {
		return err
	}
	fmt.Printf("Customer #%d deleted\n", id)
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// optionalFlag returns the flag value or nil when unset.
func optionalFlag(cmd *cobra.Command, name string) *string {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return nil
	}
	return &value
}

// changedFlag returns the flag value only when the user passed it, so
// an explicit empty string still counts as a change.
func changedFlag(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetString(name)
	return &value
}

func stringOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func balanceOrDash(balance *int64) string {
	if balance == nil {
		return "-"
	}
	return strconv.FormatInt(*balance, 10)
}

func settledFor(days *int) string {
	if days == nil {
		return "-"
	}
	return fmt.Sprintf("%d days", *days)
}
