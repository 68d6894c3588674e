package prompt

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/pkg/printer"
)

var statsOutput string

var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show prompt counts by kind, category and tag",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	StatsCmd.Flags().StringVarP(&statsOutput, "output", "o", "table", "Output format (table, json)")
}

func runStats(cmd *cobra.Command, args []string) error {
	if err := requireClient(); err != nil {
		return err
	}

	stats, err := apiClient.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	return printer.New(printer.OutputType(statsOutput), false).Print(stats, func() error {
		t := printer.NewTablePrinter(os.Stdout)
		t.SetHeaders("Metric", "Count")
		t.AddRow("Total", stats.Total)
		t.AddRow("Templates", stats.Templates)
		t.AddRow("Regular", stats.Regular)
		for _, name := range sortedKeys(stats.Categories) {
			t.AddRow("category: "+name, stats.Categories[name])
		}
		for _, name := range sortedKeys(stats.Tags) {
			t.AddRow("tag: "+name, stats.Tags[name])
		}
		return t.Render()
	})
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
