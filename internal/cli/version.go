package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/agentregistry-dev/promptregistry/internal/client"
	"github.com/agentregistry-dev/promptregistry/internal/version"
)

var apiClient *client.Client

func SetAPIClient(client *client.Client) {
	apiClient = client
}

type VersionOutput struct {
	PrctlVersion         string `json:"prctl_version"`
	GitCommit            string `json:"git_commit"`
	BuildDate            string `json:"build_date"`
	ServerVersion        string `json:"server_version,omitempty"`
	ServerGitCommit      string `json:"server_git_commit,omitempty"`
	ServerBuildDate      string `json:"server_build_date,omitempty"`
	UpdateRecommendation string `json:"update_recommendation,omitempty"`
}

var jsonOutput bool

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Displays the version of prctl and, when reachable, of the registry server.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		output := VersionOutput{
			PrctlVersion: version.Version,
			GitCommit:    version.GitCommit,
			BuildDate:    version.BuildDate,
		}

		var err error
		var serverReached bool
		if apiClient == nil {
			err = fmt.Errorf("API client not initialized")
		} else if serverVersion, verr := apiClient.GetVersion(); verr != nil {
			err = verr
		} else {
			serverReached = true
			output.ServerVersion = serverVersion.Version
			output.ServerGitCommit = serverVersion.GitCommit
			output.ServerBuildDate = serverVersion.BuildTime
			output.UpdateRecommendation = updateRecommendation(version.Version, serverVersion.Version)
		}

		if jsonOutput {
			jsonBytes, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				fmt.Fprintf(out, "Error marshaling JSON: %v\n", err)
				return
			}
			fmt.Fprintln(out, string(jsonBytes))
			return
		}

		fmt.Fprintf(out, "prctl version %s\n", output.PrctlVersion)
		fmt.Fprintf(out, "Git commit: %s\n", output.GitCommit)
		fmt.Fprintf(out, "Build date: %s\n", output.BuildDate)

		if serverReached {
			fmt.Fprintf(out, "Server version: %s\n", output.ServerVersion)
			fmt.Fprintf(out, "Server git commit: %s\n", output.ServerGitCommit)
			fmt.Fprintf(out, "Server build date: %s\n", output.ServerBuildDate)

			if output.UpdateRecommendation != "" {
				fmt.Fprintln(out, "\n-------------------------------")
				fmt.Fprintln(out, output.UpdateRecommendation)
			}
		} else if err != nil {
			fmt.Fprintf(out, "Error getting server version: %v\n", err)
		}
	},
}

func init() {
	VersionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version information in JSON format")
}

// updateRecommendation compares semantic versions; anything unparsable
// (such as a dev build) yields no advice.
func updateRecommendation(cliVersion, serverVersion string) string {
	cli, server := version.EnsureVPrefix(cliVersion), version.EnsureVPrefix(serverVersion)
	if !semver.IsValid(cli) || !semver.IsValid(server) {
		return ""
	}
	switch semver.Compare(cli, server) {
	case 1:
		return "CLI version is newer than server version. Consider updating the server."
	case -1:
		return "Server version is newer than CLI version. Consider updating the CLI."
	}
	return ""
}
