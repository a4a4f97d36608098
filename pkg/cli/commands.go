package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grafana/grafana-plugin-sdk-go/backend/log"
	"github.com/spf13/cobra"

	"github.com/sabio/datlas-chat-plugin/pkg/llm"
	"github.com/sabio/datlas-chat-plugin/pkg/pipeline"
	"github.com/sabio/datlas-chat-plugin/pkg/provider"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

func newChartCommand() *cobra.Command {
	var path, prompt string

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Build a chart from a CSV or spreadsheet file",
		Long: `Build a single chart or a dashboard from a local .csv, .xls or .xlsx file and
print the result as JSON. Without --file, heuristic mode plots the recipe's
sample data.`,
		Example: `  datlas chart --file sales.csv --prompt "compare revenue by region"
  datlas chart --file report.xlsx --mode remote --provider gemini`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := GetConfig(cmd.Context())

			csv, err := readDataset(path)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()

			p, err := newProvider(ctx, cfg)
			if err != nil {
				return err
			}

			if cfg.Verbose {
				log.DefaultLogger.Info("Running chart pipeline", "mode", cfg.Mode, "file", path, "csv_bytes", len(csv))
			}

			res, err := pipeline.Run(ctx, p, prompt, csv, pipeline.Options{MaxRows: cfg.MaxRows})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "Path to a .csv, .xls or .xlsx file")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "What to plot")

	return cmd
}

func newRecipeCommand() *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Show which built-in recipe a prompt selects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recipe: %s\n", provider.ChooseRecipe(prompt))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "plot request: %t\n", provider.IsPlotRequest(prompt))
			return nil
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt to classify")

	return cmd
}

// readDataset converts a local file into CSV text. An empty path yields no data.
func readDataset(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &table.FileReadError{File: path, Err: fmt.Errorf("%w: %v", table.ErrFileRead, err)}
	}

	f := table.ProcessFile(filepath.Base(path), "", data)
	if f.Status != table.StatusReady {
		return "", errors.New(f.ErrorMessage)
	}
	return f.RawContent, nil
}

func newProvider(ctx context.Context, cfg *Config) (provider.Provider, error) {
	if provider.Kind(cfg.Mode) == provider.KindHeuristic {
		return provider.NewHeuristic(), nil
	}

	client, err := llm.New(ctx, cfg.LLMConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return provider.NewRemote(client), nil
}
