package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanat-app/ledger/internal/reports"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize ledger activity over a date range",
	Example: `  # Everything on record
  amanat report

  # July only
  amanat report --from 2025-07-01 --to 2025-07-31`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("from", "", "Start date (YYYY-MM-DD, default: earliest entry)")
	reportCmd.Flags().String("to", "", "End date (YYYY-MM-DD, default: today)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var req reports.Request
	if req.StartDate, err = parseDateFlag(cmd, "from"); err != nil {
		return err
	}
	if req.EndDate, err = parseDateFlag(cmd, "to"); err != nil {
		return err
	}

	summary, err := rt.reports.Summary(ctx, req)
	if err != nil {
		return err
	}

	format := func(t time.Time) string { return t.Format("2006-01-02") }
	fmt.Printf("Report %s to %s\n", format(summary.StartDate), format(summary.EndDate))
	fmt.Printf("  Charged:     %d\n", summary.AmountDue)
	fmt.Printf("  Paid:        %d\n", summary.AmountPaid)
	fmt.Printf("  Commission:  %d\n", summary.Commission)
	fmt.Printf("  Outstanding: %d\n", summary.Outstanding)
	return nil
}
