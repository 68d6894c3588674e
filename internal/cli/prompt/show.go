package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/pkg/printer"
)

const contentWidth = 80

var (
	showVersion      int
	showOutputFormat string
)

var ShowCmd = &cobra.Command{
	Use:   "show <prompt-id>",
	Short: "Show details of a prompt",
	Long:  `Shows a prompt at its current version, or at --version.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	ShowCmd.Flags().IntVar(&showVersion, "version", 0, "Show this historical version instead of the current one")
	ShowCmd.Flags().StringVarP(&showOutputFormat, "output", "o", "table", "Output format (table, json)")
}

func runShow(cmd *cobra.Command, args []string) error {
	promptID := args[0]

	if err := requireClient(); err != nil {
		return err
	}

	prompt, err := apiClient.GetPrompt(promptID, showVersion)
	if err != nil {
		return fmt.Errorf("failed to get prompt: %w", err)
	}

	if prompt == nil {
		if showVersion > 0 {
			fmt.Printf("Prompt '%s' version %d not found\n", promptID, showVersion)
		} else {
			fmt.Printf("Prompt '%s' not found\n", promptID)
		}
		return nil
	}

	if showOutputFormat == "json" {
		p := printer.New(printer.OutputTypeJSON, false)
		if err := p.PrintJSON(prompt); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
		return nil
	}

	t := printer.NewTablePrinter(os.Stdout)
	t.SetHeaders("Property", "Value")
	t.AddRow("ID", prompt.ID)
	t.AddRow("Name", prompt.Name)
	t.AddRow("Version", prompt.Version)
	t.AddRow("Description", prompt.Description)
	t.AddRow("Template", prompt.IsTemplate)
	if len(prompt.Variables) > 0 {
		t.AddRow("Variables", strings.Join(prompt.Variables, ", "))
	}
	t.AddRow("Category", prompt.Category)
	t.AddRow("Tags", prompt.Tags)
	t.AddRow("Created", prompt.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	t.AddRow("Updated", prompt.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	t.AddRow("Content", printer.Wrap(prompt.Content, contentWidth))

	if err := t.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
