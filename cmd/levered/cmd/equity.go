package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levered/market"
	"github.com/rustyeddy/levered/risk"
)

var equityCmd = &cobra.Command{
	Use:   "equity",
	Short: "Record and list equity snapshots",
}

var equityRecordCmd = &cobra.Command{
	Use:   "record <portfolio-id>",
	Short: "Record the portfolio's current equity",
	Long: `Record an equity reading. The stored peak equity never decreases.

Example:
  levered equity record main --equity 10250.75 --at 2026-10-15`,
	Args: cobra.ExactArgs(1),
	RunE: runEquityRecord,
}

var equityHistoryCmd = &cobra.Command{
	Use:   "history <portfolio-id>",
	Short: "List recent equity snapshots, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runEquityHistory,
}

var (
	equityValue float64
	equityAt    string
	equityLimit int
)

func init() {
	rootCmd.AddCommand(equityCmd)
	equityCmd.AddCommand(equityRecordCmd)
	equityCmd.AddCommand(equityHistoryCmd)

	equityRecordCmd.Flags().Float64Var(&equityValue, "equity", 0, "equity value (required)")
	equityRecordCmd.Flags().StringVar(&equityAt, "at", "", "snapshot time, YYYY-MM-DD or RFC3339 (default now)")
	equityRecordCmd.MarkFlagRequired("equity")
	equityHistoryCmd.Flags().IntVarP(&equityLimit, "limit", "n", 20, "number of snapshots")
}

// parseAt accepts RFC3339 or a plain day; empty means now.
func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return market.ParseDay(s)
}

func runEquityRecord(cmd *cobra.Command, args []string) error {
	at, err := parseAt(equityAt)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.db.RecordEquity(cmd.Context(), args[0], risk.EquitySnapshot{Time: at, Equity: equityValue})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Equity %.2f (peak %.2f) at %s\n", snap.Equity, snap.PeakEquity, snap.Time.Format(time.RFC3339))
	return nil
}

func runEquityHistory(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	hist, err := a.db.RecentEquity(cmd.Context(), args[0], equityLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, s := range hist {
		dd := 0.0
		if s.PeakEquity > 0 {
			dd = s.Equity/s.PeakEquity - 1
		}
		fmt.Fprintf(out, "%s  equity %12.2f  peak %12.2f  drawdown %6.2f%%\n", s.Time.Format(time.RFC3339), s.Equity, s.PeakEquity, dd*100)
	}
	return nil
}
