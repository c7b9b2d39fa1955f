package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/localtaskrepo/lotar/pkg/config"
)

func (a *Adapter) addConfigTools(server *mcp.Server) {
	type showArgs struct {
		Project string `json:"project,omitempty" jsonschema:"Project prefix for the project-scoped view"`
		Explain bool   `json:"explain,omitempty" jsonschema:"Include per-field provenance (env/home/global/project/default)"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "config_show",
		Description: "Show the resolved configuration, optionally with per-field provenance.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args showArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}

		var resolved *config.Resolved
		var err error
		if args.Project != "" {
			resolved, err = config.GetProjectConfig(a.ws, args.Project)
		} else {
			resolved, err = config.LoadAndMerge(a.ws)
		}
		if err != nil {
			return nil, nil, toolError(err)
		}

		payload := map[string]any{"config": resolved.Config}
		if args.Explain {
			payload["provenance"] = resolved.Provenance
		}
		return a.textResult(payload)
	})

	type setArgs struct {
		Field   string `json:"field" jsonschema:"Config field name (dotted or snake form)"`
		Value   string `json:"value" jsonschema:"New value; lists are comma-separated"`
		Project string `json:"project,omitempty" jsonschema:"Project prefix to write the project config"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "config_set",
		Description: "Validate and persist one config field in the global or project file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args setArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		if err := config.UpdateField(a.ws, args.Field, args.Value, args.Project); err != nil {
			return nil, nil, toolError(err)
		}
		return a.textResult(map[string]any{"field": args.Field, "value": args.Value, "project": args.Project})
	})
}
