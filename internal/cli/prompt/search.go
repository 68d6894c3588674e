package prompt

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/pkg/printer"
)

var searchOutput string

var SearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search prompts",
	Long:  `Case-insensitive search across prompt names, content, descriptions and tags.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	SearchCmd.Flags().StringVarP(&searchOutput, "output", "o", "table", "Output format (table, json)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := requireClient(); err != nil {
		return err
	}

	query := strings.Join(args, " ")
	prompts, err := apiClient.SearchPrompts(query)
	if err != nil {
		return fmt.Errorf("failed to search prompts: %w", err)
	}

	return printer.New(printer.OutputType(searchOutput), false).Print(prompts, func() error {
		if len(prompts) == 0 {
			fmt.Printf("No prompts match %q\n", query)
			return nil
		}
		printPromptsTable(prompts)
		return nil
	})
}
