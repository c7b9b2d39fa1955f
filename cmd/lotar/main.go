package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/cli"
	"github.com/localtaskrepo/lotar/pkg/console"
	"github.com/localtaskrepo/lotar/pkg/constants"
	"github.com/localtaskrepo/lotar/pkg/output"
)

// Build-time variables set by the release pipeline
var (
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     constants.CLIBinaryName,
	Short:   "Local-first task and sprint tracker over YAML files",
	Version: version,
	Long: `lotar keeps its whole state as YAML files inside a per-workspace
.tasks/ directory: no database, no server required, hand-editable files.

Common Tasks:
  lotar config init                 # Set up a workspace
  lotar task add --title "Fix it"   # Create a task
  lotar task list --mine            # See your work
  lotar sprint create --label S1    # Plan a sprint
  lotar sprint add 1 TEST-1         # Pull a task into it
  lotar serve                       # REST + SSE server
  lotar mcp                         # MCP tools over stdio

For detailed help on any command, use:
  lotar [command] --help`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "tracking",
		Title: "Tracking Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "workspace",
		Title: "Workspace Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "surfaces",
		Title: "Server Commands:",
	})

	// Shared persistent flags every handler resolves through newContext
	rootCmd.PersistentFlags().String("tasks-dir", "", "Path to the .tasks directory (default: discovered upward from the working directory)")
	rootCmd.PersistentFlags().String("project", "", "Project prefix or name")
	rootCmd.PersistentFlags().String("format", "text", "Output format: text or json")

	// Messages go to stderr; stdout is reserved for command output
	rootCmd.SetOut(os.Stderr)

	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n",
		console.FormatInfoMessage(fmt.Sprintf("%s version {{.Version}}", constants.CLIBinaryName))))

	taskCmd := cli.NewTaskCommand()
	sprintCmd := cli.NewSprintCommand()
	configCmd := cli.NewConfigCommand()
	serveCmd := cli.NewServeCommand()
	mcpCmd := cli.NewMCPServerCommand()

	taskCmd.GroupID = "tracking"
	sprintCmd.GroupID = "tracking"
	configCmd.GroupID = "workspace"
	serveCmd.GroupID = "surfaces"
	mcpCmd.GroupID = "surfaces"

	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(sprintCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	cli.SetVersionInfo(version)

	if err := rootCmd.Execute(); err != nil {
		// Handlers already rendered the failure; map it to the exit code.
		os.Exit(output.AsCommandError(err).ExitCode())
	}
}
