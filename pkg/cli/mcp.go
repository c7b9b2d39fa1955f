package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/mcpserver"
)

// NewMCPServerCommand creates the MCP stdio server command.
func NewMCPServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run an MCP (Model Context Protocol) server over this workspace",
		Long: `Run an MCP server exposing the task, sprint, and config services
as tools over stdio.

Tool schemas carry enum hints (statuses, priorities, types, tags) from
the resolved configuration when the workspace holds exactly one project;
with several projects the hints travel inside each response payload.
List-style tools paginate with an opaque cursor and report count, total,
hasMore, and nextCursor.`,
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}
			return mcpserver.Run(context.Background(), ctx.ws, version)
		}),
	}
	return cmd
}
