package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockresolver/pkg/cli/internal/output"
	"github.com/getmockd/mockresolver/pkg/cli/internal/parse"
	"github.com/getmockd/mockresolver/pkg/template"
	"github.com/getmockd/mockresolver/pkg/template/builtin"
)

var (
	renderVars    []string
	renderHeaders []string
	renderSeed    int64
	renderCount   int
	renderMethod  string
	renderPath    string
	renderBody    string
)

var renderCmd = &cobra.Command{
	Use:   "render TEMPLATE",
	Short: "Render a ${...} template against a synthetic request",
	Long: `Render a template once, or --count times as a batch, and print each result
on its own line. Use "-" to read the template from stdin.

The request seen by request.* functions is built from --method, --path,
--header and --body. Variables set with --var are available to var() and
var:name references. --seed makes random functions repeatable.`,
	Example: `  mockresolver render 'Hello ${upper(var:name)}' --var name=ada
  mockresolver render '${uuid()}' --seed 42 --count 3
  echo '{"id": "${request.query(id)}"}' | mockresolver render - --path '/x?id=7'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		if source == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read template: %w", err)
			}
			source = strings.TrimSuffix(string(data), "\n")
		}
		if renderCount < 1 {
			return errors.New("--count must be at least 1")
		}

		log, err := commandLogger(cmd)
		if err != nil {
			return err
		}
		reg, err := builtin.NewRegistry(builtin.Options{})
		if err != nil {
			return err
		}
		expr, err := template.ParserFor(reg).Parse(source)
		if err != nil {
			return err
		}

		ctx, err := renderContext(cmd.Flags().Changed("seed"))
		if err != nil {
			return err
		}

		eval := template.NewEvaluator(reg)
		log.Debug("rendering template", "count", renderCount, "pure", eval.IsPure(expr), "seeded", ctx.Rand != nil)
		results, err := eval.EvaluateBatch(expr, ctx, renderCount)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return output.JSON(out, results)
		}
		for _, r := range results {
			fmt.Fprintln(out, r)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringArrayVarP(&renderVars, "var", "v", nil, "Context variable as name=value (repeatable)")
	renderCmd.Flags().StringArrayVarP(&renderHeaders, "header", "H", nil, `Request header as "Name: value" (repeatable)`)
	renderCmd.Flags().Int64Var(&renderSeed, "seed", 0, "Seed for random functions")
	renderCmd.Flags().IntVarP(&renderCount, "count", "n", 1, "Number of independent renders")
	renderCmd.Flags().StringVarP(&renderMethod, "method", "X", http.MethodGet, "Request method")
	renderCmd.Flags().StringVar(&renderPath, "path", "/", "Request path and query")
	renderCmd.Flags().StringVarP(&renderBody, "body", "d", "", "Request body")
}

// renderContext builds the evaluation context from the render flags.
func renderContext(seeded bool) (*template.Context, error) {
	headers, err := parse.Headers(renderHeaders)
	if err != nil {
		return nil, err
	}
	vars, err := parse.Vars(renderVars)
	if err != nil {
		return nil, err
	}

	path := renderPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequest(strings.ToUpper(renderMethod), "http://localhost"+path, strings.NewReader(renderBody))
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	req.Header = headers

	ctx := template.NewContext(req, []byte(renderBody))
	for name, value := range vars {
		ctx.SetVar(name, value)
	}
	if seeded {
		ctx.SetSeed(renderSeed)
	}
	return ctx, nil
}
