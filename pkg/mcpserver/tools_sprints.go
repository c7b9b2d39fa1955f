package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/constants"
	"github.com/localtaskrepo/lotar/pkg/metrics"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
)

func (a *Adapter) addSprintTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_list",
		Description: "List all sprints with their derived lifecycle state and canonicalization warnings.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		records, err := a.sprints.List()
		if err != nil {
			return nil, nil, toolError(err)
		}

		now := time.Now()
		views := make([]map[string]any, 0, len(records))
		for _, record := range records {
			views = append(views, map[string]any{
				"id":       record.ID,
				"label":    sprint.DisplayName(record),
				"sprint":   record.Sprint,
				"status":   sprint.DeriveStatus(record.Sprint, now),
				"warnings": record.Warnings,
			})
		}
		return a.textResult(map[string]any{"sprints": views})
	})

	type createArgs struct {
		Label        string  `json:"label,omitempty" jsonschema:"Display label"`
		Goal         string  `json:"goal,omitempty" jsonschema:"Sprint goal"`
		Length       string  `json:"length,omitempty" jsonschema:"Planned length (2w, 10d)"`
		StartsAt     string  `json:"starts_at,omitempty" jsonschema:"Planned start (RFC3339)"`
		EndsAt       string  `json:"ends_at,omitempty" jsonschema:"Planned end (RFC3339); wins over length"`
		Points       float64 `json:"capacity_points,omitempty" jsonschema:"Capacity in points"`
		Hours        float64 `json:"capacity_hours,omitempty" jsonschema:"Capacity in hours"`
		OverdueAfter string  `json:"overdue_after,omitempty" jsonschema:"Grace period before overdue (1w)"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_create",
		Description: "Create a sprint. Unset plan fields fall back to the configured sprint defaults.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args createArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}

		plan := sprint.Plan{
			Label:        args.Label,
			Goal:         args.Goal,
			Length:       args.Length,
			OverdueAfter: args.OverdueAfter,
		}
		if args.StartsAt != "" {
			at, err := time.Parse(time.RFC3339, args.StartsAt)
			if err != nil {
				return nil, nil, toolError(err)
			}
			plan.StartsAt = task.At(at)
		}
		if args.EndsAt != "" {
			at, err := time.Parse(time.RFC3339, args.EndsAt)
			if err != nil {
				return nil, nil, toolError(err)
			}
			plan.EndsAt = task.At(at)
		}
		if args.Points > 0 || args.Hours > 0 {
			plan.Capacity = &sprint.Capacity{Points: args.Points, Hours: args.Hours}
		}

		resolved, err := config.LoadAndMerge(a.ws)
		if err != nil {
			return nil, nil, toolError(err)
		}
		record, applied, err := a.sprints.Create(&sprint.Sprint{Plan: plan}, &resolved.SprintDefaults)
		if err != nil {
			return nil, nil, toolError(err)
		}
		return a.textResult(map[string]any{
			"sprint":           record,
			"applied_defaults": applied,
			"warnings":         record.Warnings,
		})
	})

	type transitionArgs struct {
		Sprint int    `json:"sprint" jsonschema:"Sprint ID"`
		At     string `json:"at,omitempty" jsonschema:"Transition time (RFC3339, defaults to now)"`
		Force  bool   `json:"force,omitempty" jsonschema:"Override the transition guardrails"`
	}

	transition := func(close bool) func(ctx context.Context, req *mcp.CallToolRequest, args transitionArgs) (*mcp.CallToolResult, any, error) {
		return func(ctx context.Context, req *mcp.CallToolRequest, args transitionArgs) (*mcp.CallToolResult, any, error) {
			if err := cancelled(ctx); err != nil {
				return nil, nil, err
			}
			at := time.Now()
			if args.At != "" {
				parsed, err := time.Parse(time.RFC3339, args.At)
				if err != nil {
					return nil, nil, toolError(err)
				}
				at = parsed
			}

			records, err := a.sprints.List()
			if err != nil {
				return nil, nil, toolError(err)
			}
			var outcome *sprint.StartOutcome
			if close {
				outcome, err = sprint.Close(a.sprints, records, args.Sprint, at, args.Force)
			} else {
				outcome, err = sprint.Start(a.sprints, records, args.Sprint, at, args.Force)
			}
			if err != nil {
				return nil, nil, toolError(err)
			}
			return a.textResult(map[string]any{"sprint": outcome.Record, "warnings": outcome.Warnings})
		}
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_start",
		Description: "Start a sprint. Refuses to restart a started or closed sprint without force.",
	}, transition(false))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_close",
		Description: "Close a sprint. Refuses to close an un-started sprint or re-close without force.",
	}, transition(true))

	type assignArgs struct {
		Sprint      string   `json:"sprint,omitempty" jsonschema:"Sprint reference: #id, id, or label. Empty infers the single active sprint"`
		Tasks       []string `json:"tasks" jsonschema:"Task IDs"`
		Force       bool     `json:"force,omitempty" jsonschema:"Remove the tasks from any other sprint"`
		AllowClosed bool     `json:"allow_closed,omitempty" jsonschema:"Permit a closed target sprint"`
	}

	assignment := func(mode string) func(ctx context.Context, req *mcp.CallToolRequest, args assignArgs) (*mcp.CallToolResult, any, error) {
		return func(ctx context.Context, req *mcp.CallToolRequest, args assignArgs) (*mcp.CallToolResult, any, error) {
			if err := cancelled(ctx); err != nil {
				return nil, nil, err
			}
			records, err := a.sprints.List()
			if err != nil {
				return nil, nil, toolError(err)
			}

			var outcome *sprint.Outcome
			switch mode {
			case "add":
				outcome, err = sprint.AssignTasks(a.tasks, a.sprints, records, args.Tasks, args.Sprint, args.AllowClosed || args.Force, args.Force)
			case "move":
				outcome, err = sprint.MoveTasks(a.tasks, a.sprints, records, args.Tasks, args.Sprint, args.AllowClosed || args.Force)
			case "remove":
				outcome, err = sprint.RemoveTasks(a.tasks, a.sprints, records, args.Tasks, args.Sprint)
			}
			if err != nil {
				return nil, nil, toolError(err)
			}
			return a.textResult(map[string]any{"outcome": outcome})
		}
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_add",
		Description: "Assign tasks to a sprint, keeping the task-side mirror in sync.",
	}, assignment("add"))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_move",
		Description: "Move tasks into a sprint exclusively, replacing other memberships.",
	}, assignment("move"))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_remove",
		Description: "Remove tasks from a sprint.",
	}, assignment("remove"))

	type backlogArgs struct {
		Project  string   `json:"project,omitempty" jsonschema:"Project prefix"`
		Tags     []string `json:"tags,omitempty" jsonschema:"Tags to match (fuzzy)"`
		Status   []string `json:"status,omitempty" jsonschema:"Statuses to match"`
		Assignee string   `json:"assignee,omitempty" jsonschema:"Assignee"`
		Limit    int      `json:"limit,omitempty" jsonschema:"Page size"`
		Cursor   string   `json:"cursor,omitempty" jsonschema:"Opaque cursor from a previous page"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_backlog",
		Description: "List tasks that belong to no sprint. Cursor-paginated.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args backlogArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		records, err := a.sprints.List()
		if err != nil {
			return nil, nil, toolError(err)
		}
		backlog, err := sprint.FetchBacklog(a.tasks, records, sprint.BacklogOptions{
			Project:  args.Project,
			Tags:     args.Tags,
			Statuses: args.Status,
			Assignee: args.Assignee,
		})
		if err != nil {
			return nil, nil, toolError(err)
		}

		slice, meta, err := page(backlog, args.Limit, args.Cursor, constants.DefaultBacklogLimit)
		if err != nil {
			return nil, nil, toolError(err)
		}
		payload := map[string]any{"tasks": slice}
		for key, value := range meta {
			payload[key] = value
		}
		return a.textResult(payload)
	})

	type reportArgs struct {
		Sprint string `json:"sprint,omitempty" jsonschema:"Sprint reference: #id, id, or label. Empty infers the single active sprint"`
		Metric string `json:"metric,omitempty" jsonschema:"Estimation unit: tasks, points, or hours"`
		Limit  int    `json:"limit,omitempty" jsonschema:"Velocity window in sprints"`
	}

	report := func(kind string) func(ctx context.Context, req *mcp.CallToolRequest, args reportArgs) (*mcp.CallToolResult, any, error) {
		return func(ctx context.Context, req *mcp.CallToolRequest, args reportArgs) (*mcp.CallToolResult, any, error) {
			if err := cancelled(ctx); err != nil {
				return nil, nil, err
			}
			records, err := a.sprints.List()
			if err != nil {
				return nil, nil, toolError(err)
			}
			resolved, err := config.LoadAndMerge(a.ws)
			if err != nil {
				return nil, nil, toolError(err)
			}
			now := time.Now()
			metric := metrics.Metric(args.Metric)
			if metric == "" {
				metric = metrics.MetricTasks
			}

			if kind == "velocity" {
				report := metrics.ComputeVelocity(records, a.membersOf, &resolved.Config, metric, args.Limit, false, now)
				return a.textResult(map[string]any{"velocity": report})
			}

			record, err := sprint.ResolveSprintRef(records, args.Sprint, now)
			if err != nil {
				return nil, nil, toolError(err)
			}
			members := a.membersOf(record)

			switch kind {
			case "summary":
				return a.textResult(map[string]any{"summary": metrics.Summarize(record, members, &resolved.Config, now)})
			case "review":
				return a.textResult(map[string]any{"review": metrics.Reviewed(record, members, &resolved.Config, now)})
			case "stats":
				return a.textResult(map[string]any{"stats": metrics.Statistics(record, members, &resolved.Config, now)})
			default:
				burndown := metrics.ComputeBurndown(record, members, &resolved.Config, metric, now)
				return a.textResult(map[string]any{"burndown": burndown, "warnings": burndown.Warnings})
			}
		}
	}

	mcp.AddTool(server, &mcp.Tool{Name: "sprint_summary", Description: "Sprint summary: committed/done/remaining, unit totals, status breakdown, blocked tasks."}, report("summary"))
	mcp.AddTool(server, &mcp.Tool{Name: "sprint_review", Description: "Sprint review: the summary focused on remaining work with assignees."}, report("review"))
	mcp.AddTool(server, &mcp.Tool{Name: "sprint_stats", Description: "Sprint stats: summary plus the planned/actual/elapsed/remaining timeline."}, report("stats"))
	mcp.AddTool(server, &mcp.Tool{Name: "sprint_burndown", Description: "Daily burndown series with a linear ideal line. Falls back to tasks when the metric lacks estimates."}, report("burndown"))
	mcp.AddTool(server, &mcp.Tool{Name: "sprint_velocity", Description: "Velocity over the trailing closed sprints in the requested metric."}, report("velocity"))

	type deleteArgs struct {
		Sprint  int  `json:"sprint" jsonschema:"Sprint ID"`
		Cleanup bool `json:"cleanup_missing,omitempty" jsonschema:"Also sweep dangling task references to this sprint"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_delete",
		Description: "Delete a sprint file, optionally sweeping task references to it.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args deleteArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		existed, err := a.sprints.Delete(args.Sprint)
		if err != nil {
			return nil, nil, toolError(err)
		}
		if !existed {
			return nil, nil, toolError(&sprint.NotFoundError{ID: args.Sprint})
		}

		payload := map[string]any{"deleted": true, "sprint": args.Sprint}
		if args.Cleanup {
			records, err := a.sprints.List()
			if err != nil {
				return nil, nil, toolError(err)
			}
			outcome, err := sprint.Cleanup(a.tasks, records, args.Sprint)
			if err != nil {
				return nil, nil, toolError(err)
			}
			payload["cleanup"] = outcome
		}
		return a.textResult(payload)
	})

	type cleanupArgs struct {
		Sprint int `json:"sprint,omitempty" jsonschema:"Only sweep references to this sprint ID (0 sweeps all)"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sprint_cleanup_refs",
		Description: "Detect and remove dangling sprint references from tasks. Idempotent.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args cleanupArgs) (*mcp.CallToolResult, any, error) {
		if err := cancelled(ctx); err != nil {
			return nil, nil, err
		}
		records, err := a.sprints.List()
		if err != nil {
			return nil, nil, toolError(err)
		}
		outcome, err := sprint.Cleanup(a.tasks, records, args.Sprint)
		if err != nil {
			return nil, nil, toolError(err)
		}
		return a.textResult(map[string]any{"cleanup": outcome})
	})
}

// membersOf loads the member task snapshot for a sprint.
func (a *Adapter) membersOf(record *sprint.Record) []*task.Task {
	var members []*task.Task
	for _, ref := range record.Sprint.Tasks {
		if t, err := a.tasks.Get(ref.ID, ""); err == nil {
			members = append(members, t)
		}
	}
	return members
}
