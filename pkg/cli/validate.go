package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockresolver/pkg/cli/internal/output"
	"github.com/getmockd/mockresolver/pkg/config"
	"github.com/getmockd/mockresolver/pkg/template"
	"github.com/getmockd/mockresolver/pkg/template/builtin"
)

var validateMaxIterations int

// validateOutput is the --json shape of the validate command.
type validateOutput struct {
	Path   string                         `json:"path"`
	Valid  bool                           `json:"valid"`
	Errors []config.SchemaValidationError `json:"errors,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate PATH...",
	Short: "Validate mock collection files",
	Long: `Check collection files or directories without serving them.

Each file is checked against the collection JSON schema, then every template
is parsed and every function call resolved against the built-in registry.
All problems are reported, not just the first.`,
	Example: `  mockresolver validate orders.yaml
  mockresolver validate ./mocks --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := commandLogger(cmd)
		if err != nil {
			return err
		}
		reg, err := builtin.NewRegistry(builtin.Options{})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var results []validateOutput
		problems := 0
		for _, path := range args {
			result, err := config.CheckPath(path, reg, config.WithMaxIterations(validateMaxIterations))
			if err != nil {
				return err
			}
			problems += len(result.Errors)
			log.Debug("checked mocks", "path", path, "problems", len(result.Errors))
			if jsonOutput {
				results = append(results, validateOutput{Path: path, Valid: result.IsValid(), Errors: result.Errors})
				continue
			}
			if result.IsValid() {
				fmt.Fprintf(out, "%s: valid\n", path)
				continue
			}
			for _, e := range result.Errors {
				fmt.Fprintln(out, e.Error())
			}
		}

		if jsonOutput {
			if err := output.JSON(out, results); err != nil {
				return err
			}
		}
		if problems > 0 {
			return fmt.Errorf("%d problem(s) found", problems)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().IntVar(&validateMaxIterations, "max-iterations", template.DefaultMaxIterations, "Largest repeat.count allowed")
}
