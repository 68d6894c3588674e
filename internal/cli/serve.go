package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentregistry-dev/promptregistry/internal/registry"
	"github.com/agentregistry-dev/promptregistry/internal/registry/config"
	"github.com/agentregistry-dev/promptregistry/internal/registry/exporter"
	"github.com/agentregistry-dev/promptregistry/internal/registry/importer"
	"github.com/agentregistry-dev/promptregistry/pkg/printer"
	"github.com/agentregistry-dev/promptregistry/pkg/types"
)

// appOptions lets embedders extend commands that run the registry in process.
var appOptions *types.AppOptions

func SetAppOptions(opts *types.AppOptions) {
	appOptions = opts
}

var (
	storageFlag    string
	promptsDirFlag string
	httpAddrFlag   string
	mcpAddrFlag    string
	transportFlag  string
	updateExisting bool
)

// loadConfig reads .env and the environment, then applies any storage flags
// the user passed explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("storage") {
		cfg.Storage = storageFlag
	}
	if flags.Changed("prompts-dir") {
		cfg.PromptsDir = promptsDirFlag
	}
	if flags.Changed("addr") {
		cfg.HTTPAddress = httpAddrFlag
	}
	if flags.Changed("mcp-addr") {
		cfg.MCPAddress = mcpAddrFlag
	}
	if flags.Changed("transport") {
		cfg.MCPTransport = transportFlag
	}
	return cfg, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func addStorageFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&storageFlag, "storage", "", "Storage backend (file, sqlite, postgres)")
	cmd.Flags().StringVar(&promptsDirFlag, "prompts-dir", "", "Directory for the file storage backend")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the prompt registry server",
	Long: `Run the REST API (and the MCP endpoint when PROMPTREGISTRY_MCP_TRANSPORT=http)
until interrupted. Configuration comes from PROMPTREGISTRY_* variables and .env.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd)
		defer stop()
		return registry.Run(ctx, cfg, appOptions)
	},
}

var MCPCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the registry over the Model Context Protocol",
	Long: `Expose prompt tools and resources to MCP clients. The default stdio
transport suits editor and agent integrations; --transport http serves the
streamable HTTP transport on --mcp-addr.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd)
		defer stop()

		app, err := registry.NewApp(ctx, cfg, appOptions)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close(context.Background()) }()
		return app.ServeMCP(ctx)
	},
}

var ImportCmd = &cobra.Command{
	Use:   "import <file-or-url>",
	Short: "Import prompts from a seed file or another registry",
	Long: `Import a JSON or YAML array of prompt definitions into the configured storage.
A URL ending in /prompts is read page by page from another registry's API.`,
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := registry.NewApp(cmd.Context(), cfg, appOptions)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close(context.Background()) }()

		svc := importer.NewService(app.Registry())
		svc.SetUpdateIfExists(updateExisting)
		result, err := svc.ImportFromPath(cmd.Context(), args[0])
		if result != nil {
			printer.PrintInfo(fmt.Sprintf("Created %d, updated %d, failed %d", result.Created, result.Updated, len(result.Failed)))
		}
		return err
	},
}

var ExportCmd = &cobra.Command{
	Use:               "export <file>",
	Short:             "Export every prompt to a seed file",
	Long:              `Write the current version of every prompt as a seed file that import accepts. Paths ending in .yaml or .yml produce YAML.`,
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := registry.NewApp(cmd.Context(), cfg, appOptions)
		if err != nil {
			return err
		}
		defer func() { _ = app.Close(context.Background()) }()

		count, err := exporter.NewService(app.Registry()).ExportToPath(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printer.PrintSuccess(fmt.Sprintf("Exported %d prompts to %s", count, args[0]))
		return nil
	},
}

func init() {
	addStorageFlags(ServeCmd)
	ServeCmd.Flags().StringVar(&httpAddrFlag, "addr", "", "HTTP listen address")

	addStorageFlags(MCPCmd)
	MCPCmd.Flags().StringVar(&transportFlag, "transport", "", "MCP transport (stdio, http)")
	MCPCmd.Flags().StringVar(&mcpAddrFlag, "mcp-addr", "", "Listen address for the http transport")

	addStorageFlags(ImportCmd)
	ImportCmd.Flags().BoolVar(&updateExisting, "update", false, "Update prompts whose name already exists instead of adding duplicates")

	addStorageFlags(ExportCmd)
}
