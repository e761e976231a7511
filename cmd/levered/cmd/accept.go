package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levered/rebalance"
)

var acceptCmd = &cobra.Command{
	Use:   "accept",
	Short: "Apply a saved proposal to the stored positions",
	Long: `Overwrite the portfolio's positions with a proposal's target quantities.
The proposal is rejected if the positions changed after it was computed.

Example:
  levered propose main -o proposal.json
  levered accept -f proposal.json`,
	Args: cobra.NoArgs,
	RunE: runAccept,
}

var acceptFile string

func init() {
	rootCmd.AddCommand(acceptCmd)
	acceptCmd.Flags().StringVarP(&acceptFile, "file", "f", "", "proposal JSON file, - for stdin (required)")
	acceptCmd.MarkFlagRequired("file")
}

func runAccept(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if acceptFile != "-" {
		f, err := os.Open(acceptFile)
		if err != nil {
			return fmt.Errorf("open %s: %w", acceptFile, err)
		}
		defer f.Close()
		r = f
	}

	var p rebalance.Proposal
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return fmt.Errorf("decode proposal: %w", err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.applier().Accept(cmd.Context(), p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Accepted proposal %s for %s (%d positions)\n", p.ID, p.PortfolioID, len(p.Positions))
	return nil
}
