package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/levered/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage runtime and portfolio configuration files.

Subcommands:
  init     - Generate a default runtime config and an example portfolio
  validate - Validate a runtime config or a portfolio file

Examples:
  levered config init -o levered.yaml -p portfolio.yaml
  levered config validate -f levered.yaml
  levered config validate --portfolio portfolio.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate default configuration files",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration files",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	configInitOutput        string
	configInitPortfolio     string
	configValidatePath      string
	configValidatePortfolio string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "levered.yaml", "output runtime config path")
	configInitCmd.Flags().StringVarP(&configInitPortfolio, "portfolio", "p", "", "also write an example portfolio file here")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "runtime config file")
	configValidateCmd.Flags().StringVar(&configValidatePortfolio, "portfolio", "", "portfolio config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if err := config.Default().SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)

	if configInitPortfolio != "" {
		if err := config.SavePortfolioFile(configInitPortfolio, config.DefaultPortfolio()); err != nil {
			return fmt.Errorf("save portfolio: %w", err)
		}
		fmt.Fprintf(out, "✓ Created example portfolio: %s\n", configInitPortfolio)
		fmt.Fprintln(out, "\nStore it with:")
		fmt.Fprintf(out, "  levered -c %s portfolio add -f %s\n", configInitOutput, configInitPortfolio)
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if configValidatePath == "" && configValidatePortfolio == "" {
		return fmt.Errorf("nothing to validate: pass --file and/or --portfolio")
	}
	out := cmd.OutOrStdout()

	if configValidatePath != "" {
		c, err := config.LoadFromFile(configValidatePath)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
		fmt.Fprintf(out, "  Store: %s %s\n", c.Store.Driver, c.Store.DSN)
		fmt.Fprintf(out, "  Server: %s\n", c.Server.Addr)
	}
	if configValidatePortfolio != "" {
		p, err := config.LoadPortfolioFile(configValidatePortfolio)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(out, "✓ Portfolio valid: %s (%s)\n", p.ID, configValidatePortfolio)
		fmt.Fprintf(out, "  Leverage: %.2f / %.2f / %.2f\n", p.Leverage.Min, p.Leverage.Target, p.Leverage.Max)
		fmt.Fprintf(out, "  Assets: %v\n", p.Symbols())
	}
	return nil
}
