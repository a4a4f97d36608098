// Package cli provides the datlas command-line interface, which runs the chart
// pipeline against local files without a Grafana host.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "0.1.0"

type configKey struct{}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "datlas",
		Short: "DATLAS chart pipeline",
		Long: `datlas turns a CSV or spreadsheet file and a plain-language request into
render-ready Plotly figures, using an LLM or the built-in chart recipes.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./datlas.yaml)")
	rootCmd.PersistentFlags().String("mode", "", "Chart mode (heuristic|remote)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider for remote mode (openai|gemini)")
	rootCmd.PersistentFlags().String("api-key", "", "LLM API key")
	rootCmd.PersistentFlags().String("base-url", "", "OpenAI-compatible API base URL")
	rootCmd.PersistentFlags().String("model", "", "Model used for chart instructions")
	rootCmd.PersistentFlags().Int("max-rows", 0, "Maximum data rows fed to the chart builder")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Pipeline timeout")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"heuristic", "remote"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("provider", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"openai", "gemini"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newChartCommand())
	rootCmd.AddCommand(newRecipeCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg, _ := LoadConfig("", nil)
	return cfg
}
