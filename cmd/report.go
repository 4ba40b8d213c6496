package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sheetsight/sheetsight/internal/pipeline"
)

var (
	flagReportsDir string
	flagModel      string
	flagParallel   int
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Generate per-sheet PDF insight reports for a tabular file",
	Long: `Report runs the full pipeline on one CSV, TSV, or XLSX file: profile
every sheet, synthesize the key insights with the configured model, plan the
charts that best communicate them, then render the charts and write one PDF
per sheet.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		dir := cfg.ReportsDir
		if cmd.Flags().Changed("out") && flagReportsDir != "" {
			dir = flagReportsDir
		}
		parallel := cfg.ParallelSheets
		if cmd.Flags().Changed("parallel") {
			parallel = flagParallel
		}
		model := cfg.DefaultModel
		if cmd.Flags().Changed("model") && flagModel != "" {
			model = flagModel
		}

		runner := pipeline.New(rt, model, pipeline.Options{
			ReportsDir: dir,
			Parallel:   parallel,
			Generation: &pipeline.Generation{
				MaxTokens:   cfg.MaxTokens,
				Temperature: cfg.Temperature,
				TopP:        cfg.TopP,
			},
		})
		res, err := runner.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "⚠ Warning: %s\n", w)
		}
		if len(res.Reports) == 0 {
			fmt.Fprintln(os.Stderr, "⚠ Warning: no reports were written")
			return nil
		}
		fmt.Printf("Run %s wrote %d report(s) to %s:\n", res.RunID, len(res.Reports), res.ReportsDir)
		for _, rep := range res.Reports {
			fmt.Printf("  %s -> %s\n", rep.Sheet, rep.File)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&flagReportsDir, "out", "", "output directory for PDF reports (overrides config)")
	reportCmd.Flags().StringVar(&flagModel, "model", "", "model to use (overrides config)")
	reportCmd.Flags().IntVar(&flagParallel, "parallel", 0, "max sheets processed concurrently in model stages")
	rootCmd.AddCommand(reportCmd)
}
