package prompt

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/printer"
)

var (
	updateName            string
	updateDescription     string
	updateCategory        string
	updateTags            []string
	updateTemplate        bool
	updateContent         string
	updateContentFile     string
	updateExpectedVersion int
	updateOutput          string
)

var UpdateCmd = &cobra.Command{
	Use:   "update <prompt-id>",
	Short: "Update a prompt, writing a new version",
	Long: `Update a prompt. Only the flags you pass are changed, and every update
writes a new version.

Examples:
  prctl prompt update reviewer-3f9a1c2b --content-file reviewer.txt
  prctl prompt update reviewer-3f9a1c2b --tag review --tag strict --expected-version 3
  prctl prompt update greeting-1a2b3c4d --template=false`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	UpdateCmd.Flags().StringVar(&updateName, "name", "", "New name")
	UpdateCmd.Flags().StringVar(&updateDescription, "description", "", "New description")
	UpdateCmd.Flags().StringVar(&updateCategory, "category", "", "New category")
	UpdateCmd.Flags().StringSliceVar(&updateTags, "tag", nil, "Replace the tag set; repeat for several")
	UpdateCmd.Flags().BoolVar(&updateTemplate, "template", false, "Whether the content is a template")
	UpdateCmd.Flags().StringVar(&updateContent, "content", "", "New inline content")
	UpdateCmd.Flags().StringVar(&updateContentFile, "content-file", "", "Read new content from this file")
	UpdateCmd.Flags().IntVar(&updateExpectedVersion, "expected-version", 0, "Fail unless the stored version matches")
	UpdateCmd.Flags().StringVarP(&updateOutput, "output", "o", "table", "Output format (table, json)")
	UpdateCmd.MarkFlagsMutuallyExclusive("content", "content-file")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if err := requireClient(); err != nil {
		return err
	}

	patch, err := buildPatch(cmd)
	if err != nil {
		return err
	}

	updated, err := apiClient.UpdatePrompt(args[0], patch)
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}

	return printer.New(printer.OutputType(updateOutput), false).Print(updated, func() error {
		printer.PrintSuccess(fmt.Sprintf("Prompt '%s' updated to version %d", updated.ID, updated.Version))
		return nil
	})
}

func buildPatch(cmd *cobra.Command) (*models.UpdatePromptInput, error) {
	flags := cmd.Flags()
	patch := &models.UpdatePromptInput{}
	changed := false

	if flags.Changed("name") {
		patch.Name, changed = &updateName, true
	}
	if flags.Changed("description") {
		patch.Description, changed = &updateDescription, true
	}
	if flags.Changed("category") {
		patch.Category, changed = &updateCategory, true
	}
	if flags.Changed("tag") {
		patch.Tags, changed = &updateTags, true
	}
	if flags.Changed("template") {
		patch.IsTemplate, changed = &updateTemplate, true
	}
	if flags.Changed("content") {
		patch.Content, changed = &updateContent, true
	}
	if flags.Changed("content-file") {
		data, err := os.ReadFile(updateContentFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read content file: %w", err)
		}
		content := string(data)
		patch.Content, changed = &content, true
	}
	if flags.Changed("expected-version") {
		patch.ExpectedVersion = &updateExpectedVersion
	}

	if !changed {
		return nil, fmt.Errorf("nothing to update; pass at least one field flag")
	}
	return patch, nil
}
