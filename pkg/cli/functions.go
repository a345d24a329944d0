package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockresolver/pkg/cli/internal/output"
	"github.com/getmockd/mockresolver/pkg/template"
	"github.com/getmockd/mockresolver/pkg/template/builtin"
)

var functionsFormat string

var functionsCmd = &cobra.Command{
	Use:     "functions [NAME...]",
	Aliases: []string{"funcs"},
	Short:   "List the template functions available in ${...} expressions",
	Long: `List the built-in template functions with their parameters and an example.

With names, only those functions are described. The markdown format renders
the same reference as a document.`,
	Example: `  mockresolver functions
  mockresolver functions uuid random.int
  mockresolver functions --format markdown > FUNCTIONS.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := builtin.NewRegistry(builtin.Options{})
		if err != nil {
			return err
		}

		docs, err := selectDocs(reg, args)
		if err != nil {
			return err
		}

		format := functionsFormat
		if jsonOutput {
			format = "json"
		}
		out := cmd.OutOrStdout()
		switch format {
		case "json":
			return output.JSON(out, docs)
		case "markdown", "md":
			writeFunctionsMarkdown(out, docs)
			return nil
		case "text", "":
			return writeFunctionsText(out, docs)
		default:
			return fmt.Errorf("unknown format %q (expected text, markdown or json)", format)
		}
	},
}

func init() {
	rootCmd.AddCommand(functionsCmd)
	functionsCmd.Flags().StringVarP(&functionsFormat, "format", "f", "text", "Output format: text, markdown, json")
}

// selectDocs returns docs for names, or for every function when names is empty.
func selectDocs(reg *template.Registry, names []string) ([]template.FunctionDoc, error) {
	if len(names) == 0 {
		return reg.DescribeAll(), nil
	}
	docs := make([]template.FunctionDoc, 0, len(names))
	for _, name := range names {
		spec, ok := reg.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown function %q (run 'mockresolver functions' for the full list)", name)
		}
		docs = append(docs, spec.Doc)
	}
	return docs, nil
}

// signature renders name(a, b, [c]).
func signature(doc template.FunctionDoc) string {
	params := make([]string, 0, len(doc.Params))
	for _, p := range doc.Params {
		if p.Optional {
			params = append(params, "["+p.Name+"]")
		} else {
			params = append(params, p.Name)
		}
	}
	return doc.Name + "(" + strings.Join(params, ", ") + ")"
}

func writeFunctionsText(w io.Writer, docs []template.FunctionDoc) error {
	tw := output.Table(w)
	fmt.Fprintln(tw, "FUNCTION\tKIND\tDESCRIPTION")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", signature(d), d.Kind, d.Description)
	}
	return tw.Flush()
}

func writeFunctionsMarkdown(w io.Writer, docs []template.FunctionDoc) {
	fmt.Fprintln(w, "# Template Functions")
	for _, d := range docs {
		fmt.Fprintf(w, "\n## %s\n\n", d.Name)
		if d.Description != "" {
			fmt.Fprintf(w, "%s\n\n", d.Description)
		}
		fmt.Fprintf(w, "Signature: `%s` (%s)\n", signature(d), d.Kind)
		if len(d.Params) > 0 {
			fmt.Fprintln(w, "\n| Parameter | Type | Description |")
			fmt.Fprintln(w, "|-----------|------|-------------|")
			for _, p := range d.Params {
				desc := p.Description
				if p.Optional {
					desc = strings.TrimSpace("(optional) " + desc)
				}
				fmt.Fprintf(w, "| %s | %s | %s |\n", p.Name, p.Type, desc)
			}
		}
		if d.Example != "" {
			fmt.Fprintf(w, "\nExample: `%s`\n", d.Example)
		}
	}
}
