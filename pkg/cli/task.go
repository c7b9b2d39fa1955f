package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/console"
	"github.com/localtaskrepo/lotar/pkg/filter"
	"github.com/localtaskrepo/lotar/pkg/identity"
	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/task"
)

// NewTaskCommand creates the task command tree.
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, list, and mutate tasks",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(newTaskAddCommand())
	cmd.AddCommand(newTaskListCommand())
	cmd.AddCommand(newTaskGetCommand())
	cmd.AddCommand(newTaskUpdateCommand())
	cmd.AddCommand(newTaskDeleteCommand())
	cmd.AddCommand(newTaskCommentCommand())
	cmd.AddCommand(newTaskStatusCommand())
	return cmd
}

func newTaskAddCommand() *cobra.Command {
	var (
		title        string
		description  string
		status       string
		priority     string
		taskType     string
		assignee     string
		reporter     string
		dueDate      string
		effort       string
		tags         []string
		customFields []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task in the current project",
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			projectFlag, _ := cmd.Flags().GetString("project")
			project, err := ctx.projectOrDefault(projectFlag)
			if err != nil {
				return err
			}

			fields, err := parseFieldPairs(customFields)
			if err != nil {
				return err
			}

			created, err := ctx.tasks().Create(task.CreateRequest{
				Project:      project,
				Title:        title,
				Description:  description,
				Status:       status,
				Priority:     priority,
				TaskType:     taskType,
				Assignee:     assignee,
				Reporter:     reporter,
				DueDate:      dueDate,
				Effort:       effort,
				Tags:         tags,
				CustomFields: fields,
			})
			if err != nil {
				return err
			}

			ctx.renderer.EmitSuccess(fmt.Sprintf("Created %s: %s", created.ID, created.Title))
			return ctx.renderer.EmitJSON(created)
		}),
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title (required)")
	cmd.Flags().StringVar(&description, "description", "", "Longer description")
	cmd.Flags().StringVar(&status, "status", "", "Initial status (defaults from config)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (defaults from config)")
	cmd.Flags().StringVar(&taskType, "type", "", "Task type (defaults from config)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assignee (@me resolves to you)")
	cmd.Flags().StringVar(&reporter, "reporter", "", "Reporter (defaults to the resolved identity)")
	cmd.Flags().StringVar(&dueDate, "due-date", "", "Due date")
	cmd.Flags().StringVar(&effort, "effort", "", "Effort estimate: points (5) or time (8h, 2d, 1w)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags")
	cmd.Flags().StringArrayVar(&customFields, "field", nil, "Custom field as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTaskListCommand() *cobra.Command {
	var (
		statuses    []string
		priorities  []string
		taskTypes   []string
		tags        []string
		assignee    string
		mine        bool
		query       string
		sprints     []string
		selectWhere []string
		limit       int
		offset      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks matching the filter",
		Long: `List tasks matching the filter.

Values within one flag OR together; different flags AND. Tag matching is
case-insensitive, ignores -, _ and spaces, and matches substrings, so
--tags ops matches a task tagged DevOps.`,
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			projectFlag, _ := cmd.Flags().GetString("project")

			f := &filter.TaskListFilter{
				Statuses:   statuses,
				Priorities: priorities,
				TaskTypes:  taskTypes,
				Tags:       tags,
				TextQuery:  query,
			}
			if projectFlag != "" {
				f.Project, err = ctx.projectOrDefault(projectFlag)
				if err != nil {
					return err
				}
			}
			if mine {
				assignee = identity.MeAlias
			}
			if assignee != "" {
				f.Assignee = identity.ResolveMeAlias(assignee, ctx.ws)
			}
			for _, raw := range sprints {
				id, err := strconv.Atoi(strings.TrimPrefix(raw, "#"))
				if err != nil {
					return &output.CommandError{Kind: output.KindInvalidArgument, Message: "invalid --sprint " + raw}
				}
				f.Sprints = append(f.Sprints, id)
			}
			if len(selectWhere) > 0 {
				resolved, err := ctx.resolvedFor(f.Project)
				if err != nil {
					return err
				}
				if err := f.ApplyWhere(selectWhere, resolved); err != nil {
					return err
				}
			}

			found, err := ctx.tasks().Search(f.Project, f.Matches)
			if err != nil {
				return err
			}

			total := len(found)
			if offset > total {
				offset = total
			}
			pageSlice := found[offset:]
			if limit > 0 && len(pageSlice) > limit {
				pageSlice = pageSlice[:limit]
			}

			if ctx.renderer.JSON() {
				if pageSlice == nil {
					pageSlice = []*task.Task{}
				}
				return ctx.renderer.EmitJSON(map[string]any{
					"tasks": pageSlice,
					"count": len(pageSlice),
					"total": total,
				})
			}

			rows := make([][]string, 0, len(pageSlice))
			for _, t := range pageSlice {
				rows = append(rows, []string{t.ID, t.Status, t.Priority, t.Title, strings.Join(t.Tags, ", ")})
			}
			ctx.renderer.RawStdout(console.RenderTable(console.TableConfig{
				Headers: []string{"ID", "Status", "Priority", "Title", "Tags"},
				Rows:    rows,
				Title:   fmt.Sprintf("%d of %d tasks", len(pageSlice), total),
			}))
			return nil
		}),
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Statuses to match")
	cmd.Flags().StringSliceVar(&priorities, "priority", nil, "Priorities to match")
	cmd.Flags().StringSliceVar(&taskTypes, "type", nil, "Types to match")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags to match (fuzzy)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assignee (@me resolves to you)")
	cmd.Flags().BoolVar(&mine, "mine", false, "Only tasks assigned to you")
	cmd.Flags().StringVar(&query, "query", "", "Free-text search over id, title, description, tags")
	cmd.Flags().StringSliceVar(&sprints, "sprint", nil, "Sprint memberships to match")
	cmd.Flags().StringArrayVar(&selectWhere, "select-where", nil, "Residual key=value constraints (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum tasks to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset into the result list")
	return cmd
}

func newTaskGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}
			projectFlag, _ := cmd.Flags().GetString("project")

			t, err := ctx.tasks().Get(args[0], projectFlag)
			if err != nil {
				return err
			}

			if ctx.renderer.JSON() {
				return ctx.renderer.EmitJSON(t)
			}
			renderTaskText(ctx.renderer, t)
			return nil
		}),
	}
	return cmd
}

func renderTaskText(renderer *output.Renderer, t *task.Task) {
	var b strings.Builder
	b.WriteString(console.FormatTaskID(t.ID) + " " + t.Title + "\n")
	b.WriteString(fmt.Sprintf("  status: %s  priority: %s  type: %s\n", t.Status, t.Priority, t.TaskType))
	if t.Assignee != "" {
		b.WriteString("  assignee: " + t.Assignee + "\n")
	}
	if t.Reporter != "" {
		b.WriteString("  reporter: " + t.Reporter + "\n")
	}
	if t.DueDate != "" {
		b.WriteString("  due: " + t.DueDate + "\n")
	}
	if t.Effort != "" {
		b.WriteString("  effort: " + t.Effort + "\n")
	}
	if len(t.Tags) > 0 {
		b.WriteString("  tags: " + strings.Join(t.Tags, ", ") + "\n")
	}
	if len(t.Sprints) > 0 {
		refs := make([]string, 0, len(t.Sprints))
		for _, id := range t.Sprints {
			refs = append(refs, "#"+strconv.Itoa(id))
		}
		b.WriteString("  sprints: " + strings.Join(refs, ", ") + "\n")
	}
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}
	for i, comment := range t.Comments {
		b.WriteString(fmt.Sprintf("\n  [%d] %s (%s):\n      %s\n", i, comment.Author, comment.Date.Format("2006-01-02"), comment.Text))
	}
	renderer.RawStdout(b.String())
}

func newTaskUpdateCommand() *cobra.Command {
	var customFields []string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Patch task fields",
		Args:  cobra.ExactArgs(1),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}
			projectFlag, _ := cmd.Flags().GetString("project")

			patch := task.Patch{}
			flagToField := map[string]**string{}
			stringPatch := func(name string, dst **string) {
				flagToField[name] = dst
			}
			stringPatch("title", &patch.Title)
			stringPatch("description", &patch.Description)
			stringPatch("status", &patch.Status)
			stringPatch("priority", &patch.Priority)
			stringPatch("assignee", &patch.Assignee)
			stringPatch("reporter", &patch.Reporter)
			stringPatch("due-date", &patch.DueDate)
			stringPatch("effort", &patch.Effort)

			for name, dst := range flagToField {
				if cmd.Flags().Changed(name) {
					value, _ := cmd.Flags().GetString(name)
					*dst = &value
				}
			}
			if cmd.Flags().Changed("type") {
				value, _ := cmd.Flags().GetString("type")
				patch.TaskType = &value
			}
			if cmd.Flags().Changed("tags") {
				value, _ := cmd.Flags().GetStringSlice("tags")
				patch.Tags = &value
			}
			if len(customFields) > 0 {
				fields, err := parseFieldPairs(customFields)
				if err != nil {
					return err
				}
				patch.CustomFields = fields
			}

			updated, err := ctx.tasks().Update(args[0], projectFlag, patch)
			if err != nil {
				return err
			}

			ctx.renderer.EmitSuccess("Updated " + updated.ID)
			return ctx.renderer.EmitJSON(updated)
		}),
	}

	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("description", "", "New description")
	cmd.Flags().String("status", "", "New status")
	cmd.Flags().String("priority", "", "New priority")
	cmd.Flags().String("type", "", "New type")
	cmd.Flags().String("assignee", "", "New assignee")
	cmd.Flags().String("reporter", "", "New reporter")
	cmd.Flags().String("due-date", "", "New due date")
	cmd.Flags().String("effort", "", "New effort")
	cmd.Flags().StringSlice("tags", nil, "Replacement tag list")
	cmd.Flags().StringArrayVar(&customFields, "field", nil, "Custom field as name=value (repeatable)")
	return cmd
}

func newTaskDeleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task file",
		Long: `Delete a task file.

Sprint membership entries pointing at the task are left in place; run
lotar sprint cleanup-refs to sweep them afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}
			projectFlag, _ := cmd.Flags().GetString("project")

			if !force && !ctx.renderer.JSON() {
				confirmed, err := console.ConfirmAction("Delete "+args[0]+"?", "Delete", "Keep")
				if err != nil || !confirmed {
					ctx.renderer.EmitInfo("Aborted")
					return nil
				}
			}

			removed, err := ctx.tasks().Delete(args[0], projectFlag)
			if err != nil {
				return err
			}
			if !removed {
				return &task.NotFoundError{ID: args[0]}
			}

			ctx.renderer.EmitSuccess("Deleted " + args[0])
			return ctx.renderer.EmitJSON(map[string]any{"deleted": true, "id": args[0]})
		}),
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	return cmd
}

func newTaskCommentCommand() *cobra.Command {
	var edit int

	cmd := &cobra.Command{
		Use:   "comment <id> <text>",
		Short: "Add or edit a task comment",
		Args:  cobra.ExactArgs(2),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}
			projectFlag, _ := cmd.Flags().GetString("project")

			if cmd.Flags().Changed("edit") {
				updated, err := ctx.tasks().UpdateComment(args[0], projectFlag, edit, args[1], "")
				if err != nil {
					return err
				}
				ctx.renderer.EmitSuccess(fmt.Sprintf("Edited comment #%d on %s", edit, updated.ID))
				return ctx.renderer.EmitJSON(updated)
			}

			updated, index, err := ctx.tasks().AddComment(args[0], projectFlag, "", args[1])
			if err != nil {
				return err
			}
			ctx.renderer.EmitSuccess(fmt.Sprintf("Added comment #%d to %s", index, updated.ID))
			return ctx.renderer.EmitJSON(map[string]any{"task": updated, "index": index})
		}),
	}

	cmd.Flags().IntVar(&edit, "edit", 0, "Edit the comment at this index instead of appending")
	return cmd
}

func newTaskStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}
			projectFlag, _ := cmd.Flags().GetString("project")

			updated, err := ctx.tasks().SetStatus(args[0], projectFlag, args[1], "")
			if err != nil {
				return err
			}

			ctx.renderer.EmitSuccess(fmt.Sprintf("%s is now %s", updated.ID, updated.Status))
			return ctx.renderer.EmitJSON(updated)
		}),
	}
	return cmd
}

// parseFieldPairs turns repeated name=value flags into a custom field map.
func parseFieldPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	fields := map[string]any{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, &output.CommandError{Kind: output.KindInvalidArgument, Message: "invalid --field " + pair + " (expected name=value)"}
		}
		fields[name] = value
	}
	return fields, nil
}
