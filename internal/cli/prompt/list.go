package prompt

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/internal/client"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/printer"
)

var (
	listAll      bool
	listPageSize int
	listLimit    int
	listOffset   int
	listCategory string
	listTags     []string
	listTemplate bool
	listPlain    bool
	outputFormat string
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompts",
	Long:  `List prompts, most recently updated first.`,
	RunE:  runList,
}

func init() {
	ListCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Show all items without pagination")
	ListCmd.Flags().IntVarP(&listPageSize, "page-size", "p", 15, "Number of items per page")
	ListCmd.Flags().IntVar(&listLimit, "limit", models.DefaultListLimit, "Maximum number of prompts to fetch")
	ListCmd.Flags().IntVar(&listOffset, "offset", 0, "Number of prompts to skip")
	ListCmd.Flags().StringVar(&listCategory, "category", "", "Only prompts in this category")
	ListCmd.Flags().StringSliceVar(&listTags, "tag", nil, "Only prompts carrying this tag; repeat to require several")
	ListCmd.Flags().BoolVar(&listTemplate, "template", false, "Only template prompts")
	ListCmd.Flags().BoolVar(&listPlain, "plain", false, "Only non-template prompts")
	ListCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json)")
	ListCmd.MarkFlagsMutuallyExclusive("template", "plain")
}

func runList(cmd *cobra.Command, args []string) error {
	if err := requireClient(); err != nil {
		return err
	}

	opts := client.ListOptions{
		Category: listCategory,
		Tags:     listTags,
		Limit:    listLimit,
		Offset:   listOffset,
	}
	switch {
	case listTemplate:
		opts.IsTemplate = &listTemplate
	case listPlain:
		isTemplate := false
		opts.IsTemplate = &isTemplate
	}

	prompts, err := apiClient.ListPrompts(opts)
	if err != nil {
		return fmt.Errorf("failed to get prompts: %w", err)
	}

	if outputFormat == "json" {
		p := printer.New(printer.OutputTypeJSON, false)
		if err := p.PrintJSON(prompts); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
		return nil
	}

	if len(prompts) == 0 {
		fmt.Println("No prompts available")
		return nil
	}
	displayPaginatedPrompts(prompts, listPageSize, listAll)
	return nil
}

func displayPaginatedPrompts(prompts []models.Prompt, pageSize int, showAll bool) {
	total := len(prompts)

	if showAll || total <= pageSize {
		printPromptsTable(prompts)
		return
	}

	reader := bufio.NewReader(os.Stdin)
	start := 0

	for start < total {
		end := min(start+pageSize, total)

		printPromptsTable(prompts[start:end])

		remaining := total - end
		if remaining == 0 {
			fmt.Printf("\nShowing all %d prompts.\n", total)
			return
		}

		fmt.Printf("\nShowing %d-%d of %d prompts. %d more available.\n", start+1, end, total, remaining)
		fmt.Print("Press Enter to continue, 'a' for all, or 'q' to quit: ")

		response, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nStopping pagination.")
			return
		}

		switch strings.TrimSpace(strings.ToLower(response)) {
		case "a", "all":
			fmt.Println()
			printPromptsTable(prompts[end:])
			return
		case "q", "quit":
			fmt.Println()
			return
		default:
			start = end
			fmt.Println()
		}
	}
}

func printPromptsTable(prompts []models.Prompt) {
	t := printer.NewTablePrinter(os.Stdout)
	t.SetHeaders("ID", "Name", "Version", "Template", "Category", "Tags", "Updated")

	for _, p := range prompts {
		t.AddRow(
			p.ID,
			printer.TruncateString(p.Name, 30),
			p.Version,
			p.IsTemplate,
			p.Category,
			printer.TruncateString(strings.Join(p.Tags, ", "), 30),
			p.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}

	if err := t.Render(); err != nil {
		printer.PrintError(fmt.Sprintf("failed to render table: %v", err))
	}
}
