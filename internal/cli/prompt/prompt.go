package prompt

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/internal/client"
)

var apiClient *client.Client

func SetAPIClient(client *client.Client) {
	apiClient = client
}

var PromptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Commands for managing prompts",
	Long:  `Commands for creating, versioning, rendering and searching prompts.`,
	Args:  cobra.ArbitraryArgs,
	Example: `prctl prompt add system-prompt.txt --name reviewer --tag review
prctl prompt list --template
prctl prompt show reviewer-3f9a1c2b --version 2
prctl prompt apply greeting-1a2b3c4d --var name=Ada
prctl prompt delete reviewer-3f9a1c2b`,
}

func init() {
	PromptCmd.AddCommand(AddCmd)
	PromptCmd.AddCommand(ListCmd)
	PromptCmd.AddCommand(ShowCmd)
	PromptCmd.AddCommand(UpdateCmd)
	PromptCmd.AddCommand(DeleteCmd)
	PromptCmd.AddCommand(ApplyCmd)
	PromptCmd.AddCommand(SearchCmd)
	PromptCmd.AddCommand(StatsCmd)
	PromptCmd.AddCommand(VersionsCmd)
}

func requireClient() error {
	if apiClient == nil {
		return fmt.Errorf("API client not initialized")
	}
	return nil
}
