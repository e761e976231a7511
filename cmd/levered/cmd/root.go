package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/logging"
)

var rootCmd = &cobra.Command{
	Use:   "levered",
	Short: "Leveraged portfolio rebalance engine",
	Long: `Levered manages a leveraged, periodically funded portfolio and proposes
how to redeploy capital across its assets.

It provides tools for:
  - Storing portfolio configurations, positions, prices and equity
  - Recording contributions
  - Computing rebalance proposals with Sharpe-optimized weights
  - Accepting proposals into the stored positions
  - Serving proposals over HTTP`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	cfgFile string
	cfg     *config.Config
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (defaults apply when empty)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg = config.Default()
	if cfgFile != "" {
		c, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	logging.Setup(cfg.Log)
	return nil
}
