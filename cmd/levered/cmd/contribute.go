package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/levered/store"
)

var contributeCmd = &cobra.Command{
	Use:   "contribute <portfolio-id> <amount>",
	Short: "Record a cash contribution",
	Long: `Record cash added to the portfolio. Equity increases by the amount and
a new equity snapshot is stored.

Example:
  levered contribute main 2500 --note "october"`,
	Args: cobra.ExactArgs(2),
	RunE: runContribute,
}

var (
	contributeNote  string
	contributeAt    string
	contributeTotal bool
)

func init() {
	rootCmd.AddCommand(contributeCmd)
	contributeCmd.Flags().StringVar(&contributeNote, "note", "", "free-form note")
	contributeCmd.Flags().StringVar(&contributeAt, "at", "", "contribution time, YYYY-MM-DD or RFC3339 (default now)")
	contributeCmd.Flags().BoolVar(&contributeTotal, "total", false, "print the total contributed afterwards")
}

func runContribute(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("bad amount %q: %w", args[1], err)
	}
	at, err := parseAt(contributeAt)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	snap, err := a.db.Contribute(ctx, store.Contribution{
		PortfolioID: args[0],
		Time:        at,
		Amount:      amount,
		Note:        contributeNote,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Contributed %s, equity now %.2f (peak %.2f) at %s\n", amount.StringFixed(2), snap.Equity, snap.PeakEquity, snap.Time.Format(time.RFC3339))
	if contributeTotal {
		cs, err := a.db.Contributions(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  Total contributed: %s over %d contributions\n", store.TotalContributed(cs).StringFixed(2), len(cs))
	}
	return nil
}
