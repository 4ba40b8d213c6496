package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sheetsight/sheetsight/internal/ingest"
	"github.com/sheetsight/sheetsight/internal/profile"
	"github.com/sheetsight/sheetsight/internal/utils"
)

var (
	flagProfileJSON  bool
	flagProfileSheet string
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Profile a tabular file without calling any model",
	Long: `Profile ingests a CSV, TSV, or XLSX file and prints the statistical
profile used to prompt the model: schema, sample rows, numeric and
categorical summaries, and top correlations. Useful for checking what the
model will see before spending tokens.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		datasets, err := ingest.ReadFile(args[0])
		if err != nil {
			return err
		}
		matched := false
		for i := range datasets {
			ds := &datasets[i]
			if flagProfileSheet != "" && ds.Name != flagProfileSheet {
				continue
			}
			matched = true
			sum, prof := profile.Analyze(ds, profile.DefaultOptions())
			if flagProfileJSON {
				out, err := utils.PrettyJSON(map[string]any{
					"summary": sum,
					"profile": prof,
				})
				if err != nil {
					return err
				}
				fmt.Println(out)
				continue
			}
			fmt.Println(sum.Markdown())
			fmt.Println(prof.Markdown())
		}
		if !matched {
			return fmt.Errorf("no sheet named %q in %s", flagProfileSheet, args[0])
		}
		return nil
	},
}

func init() {
	profileCmd.Flags().BoolVar(&flagProfileJSON, "json", false, "emit the profile as JSON")
	profileCmd.Flags().StringVar(&flagProfileSheet, "sheet", "", "profile only the named sheet")
	rootCmd.AddCommand(profileCmd)
}
