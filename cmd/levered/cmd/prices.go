package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levered/market"
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Manage daily close prices",
}

var pricesImportCmd = &cobra.Command{
	Use:   "import <file.csv>...",
	Short: "Import daily closes from CSV files",
	Long: `Import rows of date,symbol,close. Existing closes for the same
symbol and day are replaced. Files ending in .xz or .lzma are
decompressed first.

Example:
  levered prices import data/spy.csv data/tlt.csv.xz`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPricesImport,
}

func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.AddCommand(pricesImportCmd)
}

func runPricesImport(cmd *cobra.Command, args []string) error {
	var closes []market.Close
	for _, path := range args {
		cs, err := market.ReadClosesFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		closes = append(closes, cs...)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	n, err := a.db.UpsertCloses(ctx, closes)
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	var syms []string
	for _, c := range closes {
		if !seen[c.Symbol] {
			seen[c.Symbol] = true
			syms = append(syms, c.Symbol)
		}
	}
	sort.Strings(syms)
	if err := a.invalidate(ctx, syms...); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d closes for %v\n", n, syms)
	return nil
}
