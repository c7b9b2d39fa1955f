// Package mcpserver exposes the task, sprint, and config services as MCP
// tools over stdio. Tool schemas carry enum hints from the resolved
// configuration when the workspace has exactly one project; with several
// projects the hints travel inside each response payload instead.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/localtaskrepo/lotar/pkg/logger"
	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

var log = logger.New("mcp:server")

// Adapter owns the stores behind the MCP tool surface.
type Adapter struct {
	ws      workspace.Workspace
	tasks   *task.Store
	sprints *sprint.Store
	version string

	// singleProject is set when the workspace held exactly one project at
	// server build time; it switches hints inline into tool schemas.
	singleProject bool
}

// NewServer builds the MCP server with every tool registered.
func NewServer(ws workspace.Workspace, version string) *mcp.Server {
	a := &Adapter{
		ws:      ws,
		tasks:   task.NewStore(ws),
		sprints: sprint.NewStore(ws),
		version: version,
	}
	if projects, err := ws.ListProjects(); err == nil && len(projects) == 1 {
		a.singleProject = true
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "lotar",
		Version: version,
	}, nil)

	a.addTaskTools(server)
	a.addSprintTools(server)
	a.addConfigTools(server)
	return server
}

// Run serves the adapter over stdio until the client disconnects.
func Run(ctx context.Context, ws workspace.Workspace, version string) error {
	return NewServer(ws, version).Run(ctx, &mcp.StdioTransport{})
}

// textResult wraps a payload as the single-text-content result every tool
// returns. With multiple projects the workspace hints ride along inside
// the payload.
func (a *Adapter) textResult(payload map[string]any) (*mcp.CallToolResult, any, error) {
	if !a.singleProject {
		payload["hints"] = a.hints()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, toolError(err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// toolError maps service failures onto the reserved JSON-RPC range,
// carrying the suggestion and details for the caller.
func toolError(err error) *jsonrpc.Error {
	ce := output.AsCommandError(err)

	code := -32050
	switch ce.Kind {
	case output.KindInvalidArgument:
		code = -32000
	case output.KindValidation:
		code = -32001
	case output.KindNotFound:
		code = -32002
	case output.KindConflict:
		code = -32003
	case output.KindUnsupported:
		code = -32004
	}

	data := map[string]any{"kind": string(ce.Kind)}
	if ce.Suggestion != "" {
		data["suggestion"] = ce.Suggestion
	}
	if ce.Details != nil {
		data["details"] = ce.Details
	}
	raw, _ := json.Marshal(data)

	log.Printf("tool error %d: %s", code, ce.Message)
	return &jsonrpc.Error{Code: int64(code), Message: ce.Message, Data: json.RawMessage(raw)}
}

// cancelled short-circuits a tool before any work happens.
func cancelled(ctx context.Context) *jsonrpc.Error {
	select {
	case <-ctx.Done():
		return &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: "request cancelled"}
	default:
		return nil
	}
}
