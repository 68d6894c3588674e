package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/internal/client"
	"github.com/agentregistry-dev/promptregistry/internal/version"
)

var statusOutputFormat string

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the registry",
	Long:  `Displays whether the prompt registry is reachable, its version, health and prompt counts.`,
	// Status builds its own client so that an unreachable server is reported
	// rather than treated as an error.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: runStatus,
}

func init() {
	StatusCmd.Flags().StringVarP(&statusOutputFormat, "output", "o", "table", "Output format (table, json)")
}

type statusInfo struct {
	API       string `json:"api"`
	Version   string `json:"version,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	Prompts   int    `json:"prompts"`
	Templates int    `json:"templates"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	baseURL := os.Getenv(client.BaseURLEnv)
	if baseURL == "" {
		baseURL = client.DefaultBaseURL
	}

	info := statusInfo{
		API:       "unreachable",
		Prompts:   -1,
		Templates: -1,
	}

	c := client.NewClient(baseURL, os.Getenv(client.TokenEnv))
	if err := c.Ping(); err == nil {
		info.API = "ok"

		if ver, err := c.GetVersion(); err == nil {
			info.Version = ver.Version
			info.GitCommit = ver.GitCommit
			info.BuildTime = ver.BuildTime
		}

		if stats, err := c.GetStats(); err == nil {
			info.Prompts = stats.Total
			info.Templates = stats.Templates
		}
	}

	out := cmd.OutOrStdout()
	if statusOutputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(out, "prctl version:   %s\n", version.Version)
	fmt.Fprintf(out, "Registry URL:    %s\n", baseURL)
	fmt.Fprintf(out, "API:             %s\n", info.API)
	if info.Version != "" {
		fmt.Fprintf(out, "Server version:  %s\n", info.Version)
		fmt.Fprintf(out, "Git commit:      %s\n", info.GitCommit)
		fmt.Fprintf(out, "Build time:      %s\n", info.BuildTime)
	}
	if info.Prompts >= 0 {
		fmt.Fprintf(out, "Prompts:         %d\n", info.Prompts)
		fmt.Fprintf(out, "Templates:       %d\n", info.Templates)
	}

	return nil
}
