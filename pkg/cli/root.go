// Package cli assembles the prctl command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/internal/cli"
	"github.com/agentregistry-dev/promptregistry/internal/cli/prompt"
	"github.com/agentregistry-dev/promptregistry/internal/client"
	"github.com/agentregistry-dev/promptregistry/pkg/types"
)

var rootCmd = &cobra.Command{
	Use:   "prctl",
	Short: "Manage a prompt registry",
	Long: `prctl stores, versions, renders and searches prompts.

Client commands talk to a registry over HTTP (PRCTL_API_BASE_URL, default
` + client.DefaultBaseURL + `). serve, mcp, import and export run the
registry in process against PROMPTREGISTRY_* configuration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		baseURL := os.Getenv(client.BaseURLEnv)
		if baseURL == "" {
			baseURL = client.DefaultBaseURL
		}
		c := client.NewClient(baseURL, os.Getenv(client.TokenEnv))
		cli.SetAPIClient(c)
		prompt.SetAPIClient(c)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cli.VersionCmd)
	rootCmd.AddCommand(cli.StatusCmd)
	rootCmd.AddCommand(cli.ServeCmd)
	rootCmd.AddCommand(cli.MCPCmd)
	rootCmd.AddCommand(cli.ImportCmd)
	rootCmd.AddCommand(cli.ExportCmd)
	rootCmd.AddCommand(prompt.PromptCmd)
}

// Root returns the root command.
func Root() *cobra.Command {
	return rootCmd
}

// SetAppOptions extends the in-process registry started by serve, mcp,
// import and export.
func SetAppOptions(opts *types.AppOptions) {
	cli.SetAppOptions(opts)
}
