package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Environment variables read by the commands.
const (
	envEnvFile     = "DIDA_ENV_FILE"
	envAPIBase     = "DIDA_API_BASE"
	envOpenAPIBase = "DIDA_OPEN_API_BASE"
	envAuthURL     = "DIDA_AUTH_URL"
	envTokenURL    = "DIDA_TOKEN_URL"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	envFile string
	debug   bool
}

var globals globalOptions

// rootCmd represents the base command for the dida365-mcp application
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dida365-mcp",
		Short: "MCP server for the Dida365 task API",
		Long: `dida365-mcp exposes Dida365 (TickTick China) projects and tasks as
Model Context Protocol tools for AI assistants.

It can run as:
  - An MCP server over stdio or streamable HTTP (default: serve over stdio)
  - A one-shot OAuth helper that stores DIDA365_TOKEN in the credential file
    (auth, refresh)
  - A token inspector (token)

Credentials are read from a .env style file in the working directory, or the
file named by --env-file / DIDA_ENV_FILE:
  DIDA_CLIENT_ID, DIDA_CLIENT_SECRET, DIDA_REDIRECT_URI, DIDA365_TOKEN`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&globals.envFile, "env-file", "", "Credential file (default: .env, or DIDA_ENV_FILE)")
	cmd.PersistentFlags().BoolVar(&globals.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newGenerateDocsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "dida365-mcp version %s\n" .Version}}`)

	// Without a subcommand the MCP server is started on stdio.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// envFilePath resolves the credential file: flag, then DIDA_ENV_FILE, then
// the default .env.
func envFilePath() string {
	if globals.envFile != "" {
		return globals.envFile
	}
	return os.Getenv(envEnvFile)
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
