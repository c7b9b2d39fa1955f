package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/console"
	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
)

// newSprintAssignCommand builds sprint add / move / remove. Positional
// arguments may mix a sprint reference with task IDs; the sprint token is
// recognized by shape (#id, bare number, or a known label).
func newSprintAssignCommand(mode string) *cobra.Command {
	var sprintRef string
	var force bool
	var allowClosed bool

	short := map[string]string{
		"add":    "Assign tasks to a sprint",
		"move":   "Move tasks into a sprint exclusively",
		"remove": "Remove tasks from a sprint",
	}[mode]

	cmd := &cobra.Command{
		Use:   mode + " [sprint] <task>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			records, err := ctx.sprints().List()
			if err != nil {
				return err
			}

			// Split positionals: a leading sprint-shaped token names the
			// target when --sprint was not given.
			taskIDs := args
			if sprintRef == "" && len(args) > 0 && sprint.LikelySprintReference(records, args[0]) {
				sprintRef = args[0]
				taskIDs = args[1:]
			}
			if len(taskIDs) == 0 {
				return &output.CommandError{Kind: output.KindInvalidArgument, Message: "no task IDs given"}
			}

			var outcome *sprint.Outcome
			switch mode {
			case "add":
				outcome, err = sprint.AssignTasks(ctx.tasks(), ctx.sprints(), records, taskIDs, sprintRef, allowClosed || force, force)
			case "move":
				outcome, err = sprint.MoveTasks(ctx.tasks(), ctx.sprints(), records, taskIDs, sprintRef, allowClosed || force)
			case "remove":
				outcome, err = sprint.RemoveTasks(ctx.tasks(), ctx.sprints(), records, taskIDs, sprintRef)
			}
			if err != nil {
				return err
			}

			if len(outcome.Modified) > 0 {
				ctx.renderer.EmitSuccess(fmt.Sprintf("%s: %s", outcome.SprintLabel, strings.Join(outcome.Modified, ", ")))
			}
			if len(outcome.Unchanged) > 0 {
				ctx.renderer.EmitInfo("Unchanged: " + strings.Join(outcome.Unchanged, ", "))
			}
			for _, replaced := range outcome.Replaced {
				previous := make([]string, 0, len(replaced.Previous))
				for _, id := range replaced.Previous {
					previous = append(previous, fmt.Sprintf("#%d", id))
				}
				ctx.renderer.EmitInfo(fmt.Sprintf("%s left %s", replaced.TaskID, strings.Join(previous, ", ")))
			}
			return ctx.renderer.EmitJSON(outcome)
		}),
	}

	cmd.Flags().StringVar(&sprintRef, "sprint", "", "Target sprint: #id, id, or label (default: the single active sprint)")
	if mode != "remove" {
		cmd.Flags().BoolVar(&force, "force", false, "Remove the tasks from any other sprint (and allow a closed target)")
		cmd.Flags().BoolVar(&allowClosed, "allow-closed", false, "Permit a closed target sprint")
	}
	return cmd
}

func newSprintDeleteCommand() *cobra.Command {
	var cleanup bool
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <sprint>",
		Short: "Delete a sprint file",
		Args:  cobra.ExactArgs(1),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			records, err := ctx.sprints().List()
			if err != nil {
				return err
			}
			target, err := sprint.ResolveSprintRef(records, args[0], time.Now())
			if err != nil {
				return err
			}

			if !force && !ctx.renderer.JSON() {
				confirmed, err := console.ConfirmAction("Delete "+sprint.DisplayName(target)+"?", "Delete", "Keep")
				if err != nil || !confirmed {
					ctx.renderer.EmitInfo("Aborted")
					return nil
				}
			}

			existed, err := ctx.sprints().Delete(target.ID)
			if err != nil {
				return err
			}
			if !existed {
				return &sprint.NotFoundError{ID: target.ID}
			}

			var cleanupOutcome *sprint.CleanupOutcome
			if cleanup {
				remaining, err := ctx.sprints().List()
				if err != nil {
					return err
				}
				cleanupOutcome, err = sprint.Cleanup(ctx.tasks(), remaining, target.ID)
				if err != nil {
					return err
				}
				ctx.renderer.EmitInfo(fmt.Sprintf("Removed %d task references", cleanupOutcome.RemovedReferences))
			}

			ctx.renderer.EmitSuccess("Deleted " + sprint.DisplayName(target))
			return ctx.renderer.EmitJSON(map[string]any{"deleted": true, "sprint": target.ID, "cleanup": cleanupOutcome})
		}),
	}

	cmd.Flags().BoolVar(&cleanup, "cleanup-missing", false, "Also sweep task references to the deleted sprint")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	return cmd
}

func newSprintBacklogCommand() *cobra.Command {
	var tags []string
	var statuses []string
	var assignee string
	var limit int

	cmd := &cobra.Command{
		Use:   "backlog",
		Short: "List tasks that belong to no sprint",
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			projectFlag, _ := cmd.Flags().GetString("project")
			project := ""
			if projectFlag != "" {
				if project, err = ctx.projectOrDefault(projectFlag); err != nil {
					return err
				}
			}

			records, err := ctx.sprints().List()
			if err != nil {
				return err
			}
			backlog, err := sprint.FetchBacklog(ctx.tasks(), records, sprint.BacklogOptions{
				Project:  project,
				Tags:     tags,
				Statuses: statuses,
				Assignee: assignee,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			if ctx.renderer.JSON() {
				if backlog == nil {
					backlog = []*task.Task{}
				}
				return ctx.renderer.EmitJSON(map[string]any{"tasks": backlog, "count": len(backlog)})
			}

			rows := make([][]string, 0, len(backlog))
			for _, t := range backlog {
				rows = append(rows, []string{t.ID, t.Status, t.Priority, t.Title})
			}
			ctx.renderer.RawStdout(console.RenderTable(console.TableConfig{
				Headers: []string{"ID", "Status", "Priority", "Title"},
				Rows:    rows,
				Title:   fmt.Sprintf("%d backlog tasks", len(backlog)),
			}))
			return nil
		}),
	}

	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags to match (fuzzy)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Statuses to match")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assignee")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum tasks to return")
	return cmd
}

func newSprintCleanupRefsCommand() *cobra.Command {
	var targeted int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup-refs",
		Short: "Detect and remove dangling sprint references from tasks",
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			records, err := ctx.sprints().List()
			if err != nil {
				return err
			}

			if dryRun {
				report, err := sprint.DetectMissing(ctx.tasks(), records)
				if err != nil {
					return err
				}
				if len(report.MissingSprints) == 0 {
					ctx.renderer.EmitSuccess("No dangling sprint references")
				} else {
					ctx.renderer.EmitWarning(fmt.Sprintf("%d tasks reference %d missing sprints", report.TasksWithMissing, len(report.MissingSprints)))
				}
				return ctx.renderer.EmitJSON(report)
			}

			outcome, err := sprint.Cleanup(ctx.tasks(), records, targeted)
			if err != nil {
				return err
			}

			ctx.renderer.EmitSuccess(fmt.Sprintf("Scanned %d tasks, removed %d references from %d tasks",
				outcome.ScannedTasks, outcome.RemovedReferences, outcome.UpdatedTasks))
			return ctx.renderer.EmitJSON(outcome)
		}),
	}

	cmd.Flags().IntVar(&targeted, "sprint", 0, "Only sweep references to this sprint ID")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report without modifying tasks")
	return cmd
}

func newSprintNormalizeCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Rewrite sprint files in canonical form",
		Long: `Rewrite sprint files in canonical form.

With --check nothing is written; the command fails if any file differs
from its canonical rendering, making it usable as a CI guard.`,
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			results, err := ctx.sprints().Normalize(check)
			if err != nil {
				return err
			}

			changed := 0
			for _, result := range results {
				sprintWarnings(ctx.renderer, result.Warnings)
				if result.Changed {
					changed++
				}
			}

			if check && changed > 0 {
				return &output.CommandError{
					Kind:    output.KindConflict,
					Message: fmt.Sprintf("%d sprint files are not canonical", changed),
				}
			}

			if check {
				ctx.renderer.EmitSuccess("All sprint files are canonical")
			} else {
				ctx.renderer.EmitSuccess(fmt.Sprintf("Normalized %d sprint files (%d changed)", len(results), changed))
			}
			return ctx.renderer.EmitJSON(map[string]any{"results": results, "changed": changed})
		}),
	}

	cmd.Flags().BoolVar(&check, "check", false, "Fail if disk would change instead of writing")
	return cmd
}
