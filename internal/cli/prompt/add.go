package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"

	"github.com/agentregistry-dev/promptregistry/pkg/models"
	"github.com/agentregistry-dev/promptregistry/pkg/printer"
)

var (
	addName        string
	addDescription string
	addCategory    string
	addTags        []string
	addTemplate    bool
	addContent     string
	addOutput      string
)

var AddCmd = &cobra.Command{
	Use:   "add [file]",
	Short: "Add a prompt to the registry",
	Long: `Add a prompt to the registry.

The source can be:
  - A plain text file (.txt, .md, etc.) containing the prompt content.
    Use --name and the other flags to set metadata.
  - A YAML file (.yaml, .yml) with a structured prompt definition
    (name, content, description, isTemplate, tags, category fields).
  - Inline content via --content when no file is given.

Examples:
  prctl prompt add system-prompt.txt --name reviewer --tag review --tag go
  prctl prompt add greeting.txt --name greeting --template
  prctl prompt add prompt.yaml
  prctl prompt add --name haiku --content "Write a haiku about {{topic}}" --template`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func init() {
	AddCmd.Flags().StringVar(&addName, "name", "", "Prompt name (required for text files and inline content)")
	AddCmd.Flags().StringVar(&addDescription, "description", "", "Prompt description")
	AddCmd.Flags().StringVar(&addCategory, "category", "", "Prompt category")
	AddCmd.Flags().StringSliceVar(&addTags, "tag", nil, "Tag to attach; repeat for several")
	AddCmd.Flags().BoolVar(&addTemplate, "template", false, "Treat the content as a template with {{variable}} placeholders")
	AddCmd.Flags().StringVar(&addContent, "content", "", "Inline prompt content")
	AddCmd.Flags().StringVarP(&addOutput, "output", "o", "table", "Output format (table, json)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	if err := requireClient(); err != nil {
		return err
	}

	in, err := buildCreateInput(cmd, args)
	if err != nil {
		return err
	}

	created, err := apiClient.CreatePrompt(in)
	if err != nil {
		return fmt.Errorf("failed to add prompt: %w", err)
	}

	return printer.New(printer.OutputType(addOutput), false).Print(created, func() error {
		printer.PrintSuccess(fmt.Sprintf("Prompt '%s' added with id %s", created.Name, created.ID))
		if len(created.Variables) > 0 {
			printer.PrintInfo("Variables: " + strings.Join(created.Variables, ", "))
		}
		return nil
	})
}

// buildCreateInput reads the prompt source and lets explicitly set flags
// override values from a YAML definition.
func buildCreateInput(cmd *cobra.Command, args []string) (*models.CreatePromptInput, error) {
	in := &models.CreatePromptInput{}

	switch {
	case len(args) == 1:
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path: %w", err)
		}
		info, err := os.Stat(absPath)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s", absPath)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory; pass a file path instead (e.g., prompt.txt or prompt.yaml)", absPath)
		}

		ext := strings.ToLower(filepath.Ext(absPath))
		if ext == ".yaml" || ext == ".yml" {
			if in, err = readPromptYAML(absPath); err != nil {
				return nil, fmt.Errorf("failed to read YAML prompt: %w", err)
			}
		} else {
			data, err := os.ReadFile(absPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read prompt file: %w", err)
			}
			in.Content = string(data)
		}
	case cmd.Flags().Changed("content"):
		in.Content = addContent
	default:
		return nil, fmt.Errorf("provide a prompt file or --content")
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		in.Name = addName
	}
	if flags.Changed("description") {
		in.Description = &addDescription
	}
	if flags.Changed("category") {
		in.Category = &addCategory
	}
	if flags.Changed("tag") {
		in.Tags = addTags
	}
	if flags.Changed("template") {
		in.IsTemplate = addTemplate
	}

	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("--name is required unless the YAML definition sets a name")
	}
	return in, nil
}

func readPromptYAML(path string) (*models.CreatePromptInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var in models.CreatePromptInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return &in, nil
}
