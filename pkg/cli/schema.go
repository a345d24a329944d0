package cli

import (
	"github.com/spf13/cobra"

	"github.com/getmockd/mockresolver/pkg/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema for mock collection files",
	Long: `Print the JSON schema (draft 2020-12) that collection files are validated
against. Point an editor's YAML or JSON language server at it for completion.`,
	Example: `  mockresolver schema > collection.schema.json`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := cmd.OutOrStdout().Write(config.CollectionSchema())
		return err
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
