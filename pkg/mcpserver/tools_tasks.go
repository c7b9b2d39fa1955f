package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/constants"
	"github.com/localtaskrepo/lotar/pkg/filter"
	"github.com/localtaskrepo/lotar/pkg/task"
)

func (a *Adapter) addTaskTools(server *mcp.Server) {
	type addArgs struct {
		Project      string         `json:"project,omitempty" jsonschema:"Project prefix (defaults to the configured project)"`
		Title        string         `json:"title" jsonschema:"Task title"`
		Description  string         `json:"description,omitempty" jsonschema:"Longer description"`
		Status       string         `json:"status,omitempty" jsonschema:"Initial status"`
		Priority     string         `json:"priority,omitempty" jsonschema:"Priority"`
		TaskType     string         `json:"task_type,omitempty" jsonschema:"Task type"`
		Assignee     string         `json:"assignee,omitempty" jsonschema:"Assignee (@me resolves to the current user)"`
		DueDate      string         `json:"due_date,omitempty" jsonschema:"Due date"`
		Effort       string         `json:"effort,omitempty" jsonschema:"Effort estimate: points (5) or time (8h, 2d, 1w)"`
		Tags         []string       `json:"tags,omitempty" jsonschema:"Tags"`
		CustomFields map[string]any `json:"custom_fields,omitempty" jsonschema:"Custom field values"`
	}

	description := "Create a task. Returns the stored task as JSON."
	if a.singleProject {
		h := a.hints()
		description += schemaHint("statuses", h.Statuses) + schemaHint("priorities", h.Priorities) + schemaHint("types", h.Types)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_add",
		Description: description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args addArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}

		project := args.Project
		if project == "" {
			resolved, err := config.LoadAndMerge(a.ws)
			if err != nil {
				return nil, nil, toolError(err)
			}
			project = resolved.DefaultPrefix
		} else {
			var err error
			if project, err = a.ws.ResolveProjectForCreate(project); err != nil {
				return nil, nil, toolError(err)
			}
		}

		created, err := a.tasks.Create(task.CreateRequest{
			Project:      project,
			Title:        args.Title,
			Description:  args.Description,
			Status:       args.Status,
			Priority:     args.Priority,
			TaskType:     args.TaskType,
			Assignee:     args.Assignee,
			DueDate:      args.DueDate,
			Effort:       args.Effort,
			Tags:         args.Tags,
			CustomFields: args.CustomFields,
		})
		if err != nil {
			return nil, nil, toolError(err)
		}
		return a.textResult(map[string]any{"task": created})
	})

	type listArgs struct {
		Project  string   `json:"project,omitempty" jsonschema:"Project prefix"`
		Status   []string `json:"status,omitempty" jsonschema:"Statuses to match (OR)"`
		Priority []string `json:"priority,omitempty" jsonschema:"Priorities to match (OR)"`
		TaskType []string `json:"task_type,omitempty" jsonschema:"Types to match (OR)"`
		Tags     []string `json:"tags,omitempty" jsonschema:"Tags to match (fuzzy, OR)"`
		Assignee string   `json:"assignee,omitempty" jsonschema:"Assignee"`
		Query    string   `json:"query,omitempty" jsonschema:"Free-text search over id, title, description, tags"`
		Limit    int      `json:"limit,omitempty" jsonschema:"Page size, 1-200"`
		Cursor   string   `json:"cursor,omitempty" jsonschema:"Opaque cursor from a previous page"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_list",
		Description: "List tasks matching the filter. Cursor-paginated.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}

		f := &filter.TaskListFilter{
			Statuses:   args.Status,
			Priorities: args.Priority,
			TaskTypes:  args.TaskType,
			Tags:       args.Tags,
			Assignee:   args.Assignee,
			TextQuery:  args.Query,
		}
		found, err := a.tasks.Search(args.Project, f.Matches)
		if err != nil {
			return nil, nil, toolError(err)
		}

		slice, meta, err := page(found, args.Limit, args.Cursor, constants.MaxListLimit)
		if err != nil {
			return nil, nil, toolError(err)
		}

		payload := map[string]any{"tasks": slice}
		for key, value := range meta {
			payload[key] = value
		}
		return a.textResult(payload)
	})

	type idArgs struct {
		ID      string `json:"id" jsonschema:"Task ID (PREFIX-N)"`
		Project string `json:"project,omitempty" jsonschema:"Project prefix for bare numeric IDs"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_get",
		Description: "Fetch one task by ID.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args idArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		t, err := a.tasks.Get(args.ID, args.Project)
		if err != nil {
			return nil, nil, toolError(err)
		}
		return a.textResult(map[string]any{"task": t})
	})

	type updateArgs struct {
		ID           string         `json:"id" jsonschema:"Task ID"`
		Project      string         `json:"project,omitempty" jsonschema:"Project prefix"`
		Title        *string        `json:"title,omitempty" jsonschema:"New title"`
		Description  *string        `json:"description,omitempty" jsonschema:"New description"`
		Status       *string        `json:"status,omitempty" jsonschema:"New status"`
		Priority     *string        `json:"priority,omitempty" jsonschema:"New priority"`
		TaskType     *string        `json:"task_type,omitempty" jsonschema:"New type"`
		Assignee     *string        `json:"assignee,omitempty" jsonschema:"New assignee"`
		DueDate      *string        `json:"due_date,omitempty" jsonschema:"New due date"`
		Effort       *string        `json:"effort,omitempty" jsonschema:"New effort"`
		Tags         *[]string      `json:"tags,omitempty" jsonschema:"Replacement tag list"`
		CustomFields map[string]any `json:"custom_fields,omitempty" jsonschema:"Custom fields to set (null removes)"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_update",
		Description: "Patch task fields. Only provided fields change; each change lands in the task history.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args updateArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		updated, err := a.tasks.Update(args.ID, args.Project, task.Patch{
			Title:        args.Title,
			Description:  args.Description,
			Status:       args.Status,
			Priority:     args.Priority,
			TaskType:     args.TaskType,
			Assignee:     args.Assignee,
			DueDate:      args.DueDate,
			Effort:       args.Effort,
			Tags:         args.Tags,
			CustomFields: args.CustomFields,
		})
		if err != nil {
			return nil, nil, toolError(err)
		}
		return a.textResult(map[string]any{"task": updated})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_delete",
		Description: "Delete a task file. Sprint references are cleaned by sprint_cleanup_refs.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args idArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		removed, err := a.tasks.Delete(args.ID, args.Project)
		if err != nil {
			return nil, nil, toolError(err)
		}
		if !removed {
			return nil, nil, toolError(&task.NotFoundError{ID: args.ID})
		}
		return a.textResult(map[string]any{"deleted": true, "id": args.ID})
	})

	type commentArgs struct {
		ID      string `json:"id" jsonschema:"Task ID"`
		Project string `json:"project,omitempty" jsonschema:"Project prefix"`
		Text    string `json:"text" jsonschema:"Comment text"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_comment",
		Description: "Append a comment to a task. Returns the comment's stable index.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args commentArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		updated, index, err := a.tasks.AddComment(args.ID, args.Project, "", args.Text)
		if err != nil {
			return nil, nil, toolError(err)
		}
		return a.textResult(map[string]any{"task": updated, "index": index})
	})

	type statusArgs struct {
		ID      string `json:"id" jsonschema:"Task ID"`
		Project string `json:"project,omitempty" jsonschema:"Project prefix"`
		Status  string `json:"status" jsonschema:"Target status"`
	}

	statusDescription := "Set a task's status."
	if a.singleProject {
		statusDescription += schemaHint("statuses", a.hints().Statuses)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "task_status",
		Description: statusDescription,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args statusArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		updated, err := a.tasks.SetStatus(args.ID, args.Project, args.Status, "")
		if err != nil {
			return nil, nil, toolError(err)
		}
		return a.textResult(map[string]any{"task": updated})
	})
}
