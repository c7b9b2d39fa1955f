package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/console"
	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
)

// NewSprintCommand creates the sprint command tree.
func NewSprintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Plan, run, and report on sprints",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(newSprintCreateCommand())
	cmd.AddCommand(newSprintUpdateCommand())
	cmd.AddCommand(newSprintStartCommand())
	cmd.AddCommand(newSprintCloseCommand())
	cmd.AddCommand(newSprintListCommand())
	cmd.AddCommand(newSprintShowCommand())
	cmd.AddCommand(newSprintCalendarCommand())
	cmd.AddCommand(newSprintAssignCommand("add"))
	cmd.AddCommand(newSprintAssignCommand("move"))
	cmd.AddCommand(newSprintAssignCommand("remove"))
	cmd.AddCommand(newSprintDeleteCommand())
	cmd.AddCommand(newSprintBacklogCommand())
	cmd.AddCommand(newSprintCleanupRefsCommand())
	cmd.AddCommand(newSprintNormalizeCommand())
	cmd.AddCommand(newSprintReportCommand("summary", "Sprint summary: committed, done, remaining, capacity"))
	cmd.AddCommand(newSprintReportCommand("review", "Sprint review: open work with assignees"))
	cmd.AddCommand(newSprintReportCommand("stats", "Sprint stats: summary plus the timeline"))
	cmd.AddCommand(newSprintBurndownCommand())
	cmd.AddCommand(newSprintVelocityCommand())
	return cmd
}

// planFlags registers the shared plan flags for create and update.
func planFlags(cmd *cobra.Command) {
	cmd.Flags().String("label", "", "Display label")
	cmd.Flags().String("goal", "", "Sprint goal")
	cmd.Flags().String("length", "", "Planned length (2w, 10d)")
	cmd.Flags().String("starts-at", "", "Planned start (RFC3339)")
	cmd.Flags().String("ends-at", "", "Planned end (RFC3339); wins over --length")
	cmd.Flags().Float64("capacity-points", 0, "Capacity in points")
	cmd.Flags().Float64("capacity-hours", 0, "Capacity in hours")
	cmd.Flags().String("overdue-after", "", "Grace period before overdue (1w)")
	cmd.Flags().String("notes", "", "Free-form notes")
}

// planFromFlags reads the plan flags into an existing plan, touching only
// the flags that were set.
func planFromFlags(cmd *cobra.Command, plan *sprint.Plan) error {
	stringInto := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	stringInto("label", &plan.Label)
	stringInto("goal", &plan.Goal)
	stringInto("length", &plan.Length)
	stringInto("overdue-after", &plan.OverdueAfter)
	stringInto("notes", &plan.Notes)

	for _, spec := range []struct {
		flag string
		dst  *task.Timestamp
	}{
		{"starts-at", &plan.StartsAt},
		{"ends-at", &plan.EndsAt},
	} {
		if cmd.Flags().Changed(spec.flag) {
			raw, _ := cmd.Flags().GetString(spec.flag)
			at, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return &output.CommandError{Kind: output.KindInvalidArgument, Message: "invalid --" + spec.flag + ": " + err.Error()}
			}
			*spec.dst = task.At(at)
		}
	}

	if cmd.Flags().Changed("capacity-points") || cmd.Flags().Changed("capacity-hours") {
		if plan.Capacity == nil {
			plan.Capacity = &sprint.Capacity{}
		}
		if cmd.Flags().Changed("capacity-points") {
			plan.Capacity.Points, _ = cmd.Flags().GetFloat64("capacity-points")
		}
		if cmd.Flags().Changed("capacity-hours") {
			plan.Capacity.Hours, _ = cmd.Flags().GetFloat64("capacity-hours")
		}
	}
	return nil
}

func newSprintCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sprint",
		Long: `Create a sprint.

Plan fields left unset fall back to the configured sprint defaults. When
--ends-at is given, --length is ignored with a warning: an explicit end
date wins over a relative length.`,
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			var plan sprint.Plan
			if err := planFromFlags(cmd, &plan); err != nil {
				return err
			}

			resolved, err := ctx.resolvedFor("")
			if err != nil {
				return err
			}

			record, applied, err := ctx.sprints().Create(&sprint.Sprint{Plan: plan}, &resolved.SprintDefaults)
			if err != nil {
				return err
			}

			sprintWarnings(ctx.renderer, record.Warnings)
			if len(applied) > 0 {
				ctx.renderer.EmitInfo("Applied defaults: " + strings.Join(applied, ", "))
			}
			ctx.renderer.EmitSuccess(fmt.Sprintf("Created %s (#%d)", sprint.DisplayName(record), record.ID))
			return ctx.renderer.EmitJSON(map[string]any{"sprint": record, "applied_defaults": applied})
		}),
	}

	planFlags(cmd)
	return cmd
}

func newSprintUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <sprint>",
		Short: "Update a sprint's plan",
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

			if err := planFromFlags(cmd, &target.Sprint.Plan); err != nil {
				return err
			}

			record, err := ctx.sprints().Update(target.ID, target.Sprint)
			if err != nil {
				return err
			}

			sprintWarnings(ctx.renderer, record.Warnings)
			ctx.renderer.EmitSuccess(fmt.Sprintf("Updated %s", sprint.DisplayName(record)))
			return ctx.renderer.EmitJSON(record)
		}),
	}

	planFlags(cmd)
	return cmd
}

// transitionCommand builds sprint start / sprint close.
func transitionCommand(name, short string, close bool) *cobra.Command {
	var at string
	var force bool

	cmd := &cobra.Command{
		Use:   name + " <sprint>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			when := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return &output.CommandError{Kind: output.KindInvalidArgument, Message: "invalid --at: " + err.Error()}
				}
				when = parsed
			}

			records, err := ctx.sprints().List()
			if err != nil {
				return err
			}
			target, err := sprint.ResolveSprintRef(records, args[0], when)
			if err != nil {
				return err
			}

			var outcome *sprint.StartOutcome
			if close {
				outcome, err = sprint.Close(ctx.sprints(), records, target.ID, when, force)
			} else {
				outcome, err = sprint.Start(ctx.sprints(), records, target.ID, when, force)
			}
			if err != nil {
				return err
			}

			sprintWarnings(ctx.renderer, outcome.Warnings)
			verb := "Started"
			if close {
				verb = "Closed"
			}
			ctx.renderer.EmitSuccess(fmt.Sprintf("%s %s", verb, sprint.DisplayName(outcome.Record)))
			return ctx.renderer.EmitJSON(map[string]any{"sprint": outcome.Record, "warnings": outcome.Warnings})
		}),
	}

	cmd.Flags().StringVar(&at, "at", "", "Transition time (RFC3339, defaults to now)")
	cmd.Flags().BoolVar(&force, "force", false, "Override the transition guardrails")
	return cmd
}

func newSprintStartCommand() *cobra.Command {
	return transitionCommand("start", "Start a sprint", false)
}

func newSprintCloseCommand() *cobra.Command {
	return transitionCommand("close", "Close a sprint", true)
}

func newSprintListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sprints with their derived state",
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			records, err := ctx.sprints().List()
			if err != nil {
				return err
			}

			resolved, err := ctx.resolvedFor("")
			if err != nil {
				return err
			}

			now := time.Now()
			type view struct {
				ID       int                    `json:"id"`
				Label    string                 `json:"label"`
				Status   sprint.LifecycleStatus `json:"status"`
				Tasks    int                    `json:"tasks"`
				Warnings []sprint.Warning       `json:"warnings,omitempty"`
			}
			views := make([]view, 0, len(records))
			for _, record := range records {
				status := sprint.DeriveStatus(record.Sprint, now)
				views = append(views, view{
					ID:       record.ID,
					Label:    sprint.DisplayName(record),
					Status:   status,
					Tasks:    len(record.Sprint.Tasks),
					Warnings: record.Warnings,
				})
				sprintWarnings(ctx.renderer, record.Warnings)
				if resolved.SprintNotificationsEnabled && status.State == sprint.StateOverdue {
					ctx.renderer.EmitWarning(fmt.Sprintf("%s is overdue", sprint.DisplayName(record)))
				}
			}

			if ctx.renderer.JSON() {
				return ctx.renderer.EmitJSON(map[string]any{"sprints": views})
			}

			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{
					"#" + strconv.Itoa(v.ID), v.Label, string(v.Status.State), strconv.Itoa(v.Tasks),
				})
			}
			ctx.renderer.RawStdout(console.RenderTable(console.TableConfig{
				Headers: []string{"ID", "Label", "State", "Tasks"},
				Rows:    rows,
			}))
			return nil
		}),
	}
	return cmd
}

func newSprintShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <sprint>",
		Short: "Show one sprint in full",
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
			record, err := sprint.ResolveSprintRef(records, args[0], time.Now())
			if err != nil {
				return err
			}

			sprintWarnings(ctx.renderer, record.Warnings)
			if ctx.renderer.JSON() {
				return ctx.renderer.EmitJSON(map[string]any{
					"sprint": record,
					"status": sprint.DeriveStatus(record.Sprint, time.Now()),
				})
			}

			status := sprint.DeriveStatus(record.Sprint, time.Now())
			var b strings.Builder
			b.WriteString(console.FormatTaskID("#"+strconv.Itoa(record.ID)) + " " + sprint.DisplayName(record) + " (" + string(status.State) + ")\n")
			if record.Sprint.Plan.Goal != "" {
				b.WriteString("  goal: " + record.Sprint.Plan.Goal + "\n")
			}
			if !status.PlannedStart.IsZero() {
				b.WriteString("  planned start: " + status.PlannedStart.Format(time.RFC3339) + "\n")
			}
			if !status.ComputedEnd.IsZero() {
				b.WriteString("  computed end:  " + status.ComputedEnd.Format(time.RFC3339) + "\n")
			}
			for _, ref := range record.Sprint.Tasks {
				b.WriteString("  - " + ref.ID + "\n")
			}
			ctx.renderer.RawStdout(b.String())
			return nil
		}),
	}
	return cmd
}
