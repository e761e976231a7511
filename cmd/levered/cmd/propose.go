package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levered/rebalance"
)

var proposeCmd = &cobra.Command{
	Use:   "propose <portfolio-id>",
	Short: "Compute a rebalance proposal",
	Long: `Compute a rebalance proposal from the stored positions, prices,
configuration and equity history. Nothing is written to the store.

Examples:
  levered propose main
  levered propose main -o proposal.json
  levered propose main --json`,
	Args: cobra.ExactArgs(1),
	RunE: runPropose,
}

var (
	proposeOutput string
	proposeJSON   bool
)

func init() {
	rootCmd.AddCommand(proposeCmd)
	proposeCmd.Flags().StringVarP(&proposeOutput, "output", "o", "", "write the proposal JSON to this file")
	proposeCmd.Flags().BoolVar(&proposeJSON, "json", false, "print the proposal as JSON")
}

func runPropose(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.engine().CalculateProposal(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if proposeJSON {
		return writeProposal(out, p)
	}
	printProposal(out, p)

	if proposeOutput != "" {
		f, err := os.Create(proposeOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", proposeOutput, err)
		}
		defer f.Close()
		if err := writeProposal(f, p); err != nil {
			return err
		}
		fmt.Fprintf(out, "\n✓ Wrote proposal %s to %s\n", p.ID, proposeOutput)
		fmt.Fprintf(out, "  Accept with: levered accept -f %s\n", proposeOutput)
	}
	return nil
}

func writeProposal(w io.Writer, p rebalance.Proposal) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode proposal: %w", err)
	}
	return nil
}

func printProposal(w io.Writer, p rebalance.Proposal) {
	st, sig, sum := p.State, p.Signals, p.Summary
	fmt.Fprintf(w, "Proposal %s for %s (positions version %d)\n", p.ID, p.PortfolioID, p.BaseVersion)
	fmt.Fprintf(w, "  Equity %.2f  Exposure %.2f  Leverage %.2fx  Margin %.1f%%\n", st.Equity, st.Exposure, st.Leverage, st.MarginRatio*100)
	fmt.Fprintf(w, "  Target exposure %.2f (%s, target leverage %.2fx)\n", p.TargetExposure, p.ExposureBranch, p.TargetLeverage)

	vol := "n/a"
	if sig.RealizedVolatility != nil {
		vol = fmt.Sprintf("%.2f%%", *sig.RealizedVolatility*100)
	}
	fmt.Fprintf(w, "  Drawdown %.2f%% [%v]  Weight deviation %.2f%% [%v]  Volatility %s [%v]\n",
		sig.Drawdown*100, sig.DrawdownTriggered, sig.WeightDeviation*100, sig.WeightDeviationTriggered, vol, sig.VolatilityTriggered)
	fmt.Fprintf(w, "  Deploy fraction %.2f  Weights %s\n\n", sig.DeployFraction, weightSource(p))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tACTION\tPRICE\tCURRENT\tTARGET\tDELTA\tWEIGHT\tTARGET WT\t")
	for _, pp := range p.Positions {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.4f\t%.4f\t%+.4f\t%.2f%%\t%.2f%%\t\n",
			pp.Symbol, pp.Action, pp.Price, pp.CurrentQuantity, pp.TargetQuantity, pp.Delta, pp.CurrentWeight*100, pp.TargetWeight*100)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n  New exposure %.2f  New leverage %.2fx  Equity used %.2f  Borrow increase %+.2f\n",
		sum.NewExposure, sum.NewLeverage, sum.EquityUsed, sum.BorrowIncrease)
}

func weightSource(p rebalance.Proposal) string {
	if p.DynamicWeightsComputed {
		return "optimized"
	}
	return "configured"
}
