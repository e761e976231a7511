package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/risk"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Store and inspect portfolios",
	Long: `Manage stored portfolio configurations and holdings.

Examples:
  levered portfolio add -f portfolio.yaml --positions holdings.csv
  levered portfolio show main`,
}

var portfolioAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Validate and store a portfolio configuration",
	Args:  cobra.NoArgs,
	RunE:  runPortfolioAdd,
}

var portfolioShowCmd = &cobra.Command{
	Use:   "show [portfolio-id]",
	Short: "Show a portfolio's configuration, positions and equity",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPortfolioShow,
}

var (
	portfolioFile      string
	portfolioPositions string
)

func init() {
	rootCmd.AddCommand(portfolioCmd)
	portfolioCmd.AddCommand(portfolioAddCmd)
	portfolioCmd.AddCommand(portfolioShowCmd)

	portfolioAddCmd.Flags().StringVarP(&portfolioFile, "file", "f", "", "portfolio config file (required)")
	portfolioAddCmd.Flags().StringVar(&portfolioPositions, "positions", "", "CSV of initial holdings: symbol,quantity,avg_price")
	portfolioAddCmd.MarkFlagRequired("file")
}

func runPortfolioAdd(cmd *cobra.Command, args []string) error {
	p, err := config.LoadPortfolioFile(portfolioFile)
	if err != nil {
		return err
	}

	var positions []risk.Position
	if portfolioPositions != "" {
		f, err := os.Open(portfolioPositions)
		if err != nil {
			return fmt.Errorf("open positions: %w", err)
		}
		defer f.Close()
		if positions, err = readPositionsCSV(f); err != nil {
			return fmt.Errorf("read positions %s: %w", portfolioPositions, err)
		}
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.db.SavePortfolio(ctx, p); err != nil {
		return err
	}
	if positions != nil {
		if err := a.db.SetPositions(ctx, p.ID, positions); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored portfolio %s (%d assets, %d positions)\n", p.ID, len(p.TargetWeights), len(positions))
	return nil
}

func runPortfolioShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		ids, err := a.db.PortfolioIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	id := args[0]
	p, err := a.db.PortfolioConfig(ctx, id)
	if err != nil {
		return err
	}
	positions, version, err := a.db.Positions(ctx, id)
	if err != nil {
		return err
	}
	equity, err := a.db.RecentEquity(ctx, id, 1)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Portfolio %s (%s), positions version %d\n", p.ID, p.Name, version)
	fmt.Fprintf(out, "  Leverage: min %.2f target %.2f max %.2f\n", p.Leverage.Min, p.Leverage.Target, p.Leverage.Max)
	fmt.Fprintf(out, "  Weight bounds: [%.2f, %.2f]\n", p.Weights.Min, p.Weights.Max)
	for _, sym := range p.Symbols() {
		fmt.Fprintf(out, "  Target %-6s %6.2f%%\n", sym, p.TargetWeights[sym]*100)
	}
	for _, pos := range positions {
		fmt.Fprintf(out, "  Holding %-6s qty %12.4f avg %10.2f\n", pos.Symbol, pos.Quantity, pos.AvgPrice)
	}
	if len(equity) > 0 {
		fmt.Fprintf(out, "  Equity: %.2f (peak %.2f) at %s\n", equity[0].Equity, equity[0].PeakEquity, equity[0].Time.Format("2006-01-02 15:04"))
	} else {
		fmt.Fprintln(out, "  Equity: none recorded")
	}
	return nil
}

// readPositionsCSV reads symbol,quantity,avg_price rows with an optional
// header.
func readPositionsCSV(r io.Reader) ([]risk.Position, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var out []risk.Position
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && strings.EqualFold(row[0], "symbol") {
			continue
		}

		qty, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad quantity %q", line, row[1])
		}
		avg, err := strconv.ParseFloat(row[2], 64)
		if err != nil || avg < 0 {
			return nil, fmt.Errorf("line %d: bad avg_price %q", line, row[2])
		}
		out = append(out, risk.Position{Symbol: strings.ToUpper(row[0]), Quantity: qty, AvgPrice: avg})
	}
}
