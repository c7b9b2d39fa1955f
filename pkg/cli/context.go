// Package cli implements the lotar command set. Each command is built by a
// NewXxxCommand constructor and renders through the shared output renderer.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

// version is stamped by main at startup.
var version = "dev"

// SetVersionInfo records the build version for the MCP server handshake.
func SetVersionInfo(v string) {
	version = v
}

// appContext carries the per-invocation wiring every handler needs.
type appContext struct {
	ws       workspace.Workspace
	renderer *output.Renderer
	format   output.Format
}

// newContext resolves the workspace and output format from the persistent
// flags and environment.
func newContext(cmd *cobra.Command) (*appContext, error) {
	rawFormat, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(rawFormat)
	if err != nil {
		return nil, err
	}

	tasksDir, _ := cmd.Flags().GetString("tasks-dir")
	resolution := workspace.Resolve(tasksDir, os.Getenv("LOTAR_TASKS_DIR"))

	return &appContext{
		ws:       workspace.New(resolution.Path),
		renderer: output.New(format),
		format:   format,
	}, nil
}

func (c *appContext) tasks() *task.Store {
	return task.NewStore(c.ws)
}

func (c *appContext) sprints() *sprint.Store {
	return sprint.NewStore(c.ws)
}

// projectOrDefault resolves the acting project: the --project flag value
// mapped through prefix generation, else the configured default, else the
// only project on disk.
func (c *appContext) projectOrDefault(flagValue string) (string, error) {
	if flagValue != "" {
		return c.ws.ResolveProjectForCreate(flagValue)
	}

	resolved, err := config.LoadAndMerge(c.ws)
	if err != nil {
		return "", err
	}
	if resolved.DefaultPrefix != "" {
		return resolved.DefaultPrefix, nil
	}
	if resolved.DefaultProject != "" {
		return c.ws.ResolveProjectForCreate(resolved.DefaultProject)
	}

	projects, err := c.ws.ListProjects()
	if err != nil {
		return "", err
	}
	if len(projects) == 1 {
		return projects[0], nil
	}
	return "", &output.CommandError{
		Kind:    output.KindInvalidArgument,
		Message: "no project given and no default configured; pass --project",
	}
}

// handler adapts a service-error-returning function into cobra's RunE,
// rendering the failure in the active format before propagating the exit
// code to main.
func handler(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			format := output.FormatText
			if raw, ferr := cmd.Flags().GetString("format"); ferr == nil {
				if parsed, perr := output.ParseFormat(raw); perr == nil {
					format = parsed
				}
			}
			output.New(format).EmitError(err)
			return output.AsCommandError(err)
		}
		return nil
	}
}

// sprintWarnings forwards structured warnings into the renderer.
func sprintWarnings(renderer *output.Renderer, warnings []sprint.Warning) {
	for _, warning := range warnings {
		renderer.EmitWarning(warning.Message)
	}
}

// resolvedFor returns the project-scoped config view, or the workspace view
// when project is empty.
func (c *appContext) resolvedFor(project string) (*config.Resolved, error) {
	if project != "" {
		return config.GetProjectConfig(c.ws, project)
	}
	return config.LoadAndMerge(c.ws)
}
