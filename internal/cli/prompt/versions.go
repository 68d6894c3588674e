package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/pkg/printer"
)

var versionsOutput string

var VersionsCmd = &cobra.Command{
	Use:   "versions <prompt-id>",
	Short: "List the stored versions of a prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersions,
}

func init() {
	VersionsCmd.Flags().StringVarP(&versionsOutput, "output", "o", "table", "Output format (table, json)")
}

func runVersions(cmd *cobra.Command, args []string) error {
	if err := requireClient(); err != nil {
		return err
	}

	versions, err := apiClient.ListPromptVersions(args[0])
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}

	return printer.New(printer.OutputType(versionsOutput), false).Print(versions, func() error {
		if len(versions) == 0 {
			fmt.Printf("Prompt '%s' has no stored versions\n", args[0])
			return nil
		}
		parts := make([]string, len(versions))
		for i, v := range versions {
			parts[i] = strconv.Itoa(v)
		}
		fmt.Printf("%s: %s\n", args[0], strings.Join(parts, ", "))
		return nil
	})
}
