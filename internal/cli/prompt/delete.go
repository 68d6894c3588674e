package prompt

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/pkg/cli/config"
	"github.com/agentregistry-dev/promptregistry/pkg/printer"
)

var (
	deleteVersion int
	deleteYes     bool
)

var DeleteCmd = &cobra.Command{
	Use:   "delete <prompt-id>",
	Short: "Delete a prompt from the registry",
	Long: `Delete a prompt and all of its versions, or a single version with --version.

Examples:
  prctl prompt delete reviewer-3f9a1c2b
  prctl prompt delete reviewer-3f9a1c2b --version 2 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	DeleteCmd.Flags().IntVar(&deleteVersion, "version", 0, "Delete only this version")
	DeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	promptID := args[0]

	if err := requireClient(); err != nil {
		return err
	}

	target := fmt.Sprintf("prompt %s", promptID)
	if deleteVersion > 0 {
		target = fmt.Sprintf("prompt %s version %d", promptID, deleteVersion)
	}

	if config.ConfirmDeletes() && !deleteYes && !confirm(fmt.Sprintf("Delete %s?", target)) {
		printer.PrintInfo("Aborted")
		return nil
	}

	printer.PrintInfo(fmt.Sprintf("Deleting %s...", target))
	deleted, err := apiClient.DeletePrompt(promptID, deleteVersion)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%s not found", target)
	}

	printer.PrintSuccess(fmt.Sprintf("Deleted %s", target))
	return nil
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
