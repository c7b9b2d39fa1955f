package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/server"
)

// NewServeCommand creates the HTTP/SSE server command.
func NewServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and SSE server over this workspace",
		Long: `Run the HTTP and SSE server over this workspace.

Endpoints live under /api; mutations publish events consumed by the
/api/events SSE stream. A filesystem watcher reports external edits to
task files as project_changed events. The port comes from --port,
LOTAR_PORT, or the configured server.port, in that order.`,
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("port") {
				resolved, err := config.LoadAndMerge(ctx.ws)
				if err != nil {
					return err
				}
				port = resolved.ServerPort
			}

			ctx.renderer.EmitInfo(fmt.Sprintf("Serving workspace %s on http://127.0.0.1:%d", ctx.ws.Root(), port))
			return server.New(ctx.ws).ListenAndServe(port)
		}),
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (default: configured server.port)")
	return cmd
}
