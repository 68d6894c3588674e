package prompt

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	yaml "gopkg.in/yaml.v3"
)

var (
	applyVars     map[string]string
	applyVarsFile string
)

var ApplyCmd = &cobra.Command{
	Use:   "apply <prompt-id>",
	Short: "Render a template prompt",
	Long: `Render a template prompt by substituting its {{variable}} placeholders.
Values from --vars-file are read first and --var flags override them.

Examples:
  prctl prompt apply greeting-1a2b3c4d --var name=Ada --var place=London
  prctl prompt apply greeting-1a2b3c4d --vars-file vars.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	ApplyCmd.Flags().StringToStringVar(&applyVars, "var", nil, "Variable value as name=value; repeat for several")
	ApplyCmd.Flags().StringVar(&applyVarsFile, "vars-file", "", "YAML or JSON file mapping variable names to values")
}

func runApply(cmd *cobra.Command, args []string) error {
	if err := requireClient(); err != nil {
		return err
	}

	vars := map[string]string{}
	if applyVarsFile != "" {
		data, err := os.ReadFile(applyVarsFile)
		if err != nil {
			return fmt.Errorf("failed to read vars file: %w", err)
		}
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return fmt.Errorf("failed to parse vars file: %w", err)
		}
	}
	for k, v := range applyVars {
		vars[k] = v
	}

	content, err := apiClient.ApplyTemplate(args[0], vars)
	if err != nil {
		return fmt.Errorf("failed to apply template: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), content)
	return nil
}
