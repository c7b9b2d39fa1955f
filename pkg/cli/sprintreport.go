package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/console"
	"github.com/localtaskrepo/lotar/pkg/constants"
	"github.com/localtaskrepo/lotar/pkg/metrics"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
)

// effortCapFromEnv reads the LOTAR_STATS_EFFORT_CAP hour cap for stats.
func effortCapFromEnv() float64 {
	raw := os.Getenv("LOTAR_STATS_EFFORT_CAP")
	if raw == "" {
		return 0
	}
	capHours, err := strconv.ParseFloat(raw, 64)
	if err != nil || capHours < 0 {
		return 0
	}
	return capHours
}

// membersOf loads the member task snapshot for a sprint record.
func (c *appContext) membersOf(record *sprint.Record) []*task.Task {
	store := c.tasks()
	var members []*task.Task
	for _, ref := range record.Sprint.Tasks {
		if t, err := store.Get(ref.ID, ""); err == nil {
			members = append(members, t)
		}
	}
	return members
}

// newSprintReportCommand builds summary / review / stats.
func newSprintReportCommand(kind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind + " [sprint]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			records, err := ctx.sprints().List()
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			now := time.Now()
			record, err := sprint.ResolveSprintRef(records, ref, now)
			if err != nil {
				return err
			}

			resolved, err := ctx.resolvedFor("")
			if err != nil {
				return err
			}
			members := ctx.membersOf(record)
			sprintWarnings(ctx.renderer, record.Warnings)

			switch kind {
			case "review":
				review := metrics.Reviewed(record, members, &resolved.Config, now)
				if ctx.renderer.JSON() {
					return ctx.renderer.EmitJSON(review)
				}
				renderSummaryText(ctx, review.Summary)
				if len(review.Open) > 0 {
					ctx.renderer.RawStdout(console.FormatListHeader("Open work") + "\n")
					for _, item := range review.Open {
						line := fmt.Sprintf("%s %s (%s)", item.ID, item.Title, item.Status)
						if item.Assignee != "" {
							line += " — " + item.Assignee
						}
						ctx.renderer.RawStdout(console.FormatListItem(line) + "\n")
					}
				}
			case "stats":
				stats := metrics.Statistics(record, metrics.CapHours(members, effortCapFromEnv()), &resolved.Config, now)
				if ctx.renderer.JSON() {
					return ctx.renderer.EmitJSON(stats)
				}
				renderSummaryText(ctx, stats.Summary)
				timeline := [][]string{}
				for _, row := range []struct{ label, value string }{
					{"planned", stats.Timeline.Planned},
					{"actual", stats.Timeline.Actual},
					{"elapsed", stats.Timeline.Elapsed},
					{"remaining", stats.Timeline.Remaining},
					{"overdue", stats.Timeline.Overdue},
				} {
					if row.value != "" {
						timeline = append(timeline, []string{row.label, row.value})
					}
				}
				if len(timeline) > 0 {
					ctx.renderer.RawStdout(console.RenderTable(console.TableConfig{
						Headers: []string{"Timeline", "Duration"},
						Rows:    timeline,
					}))
				}
			default:
				summary := metrics.Summarize(record, members, &resolved.Config, now)
				if ctx.renderer.JSON() {
					return ctx.renderer.EmitJSON(summary)
				}
				renderSummaryText(ctx, summary)
			}
			return nil
		}),
	}
	return cmd
}

func renderSummaryText(ctx *appContext, summary *metrics.Summary) {
	ctx.renderer.RawStdout(fmt.Sprintf("%s (%s): %d committed, %d done, %d remaining (%.0f%%)\n",
		summary.SprintLabel, summary.State, summary.Committed, summary.Done, summary.Remaining,
		summary.CompletionRatio*100))
	if summary.Points != nil {
		ctx.renderer.RawStdout(fmt.Sprintf("  points: %.1f/%.1f", summary.Points.Completed, summary.Points.Committed))
		if summary.Points.Capacity > 0 {
			ctx.renderer.RawStdout(fmt.Sprintf(" (capacity %.1f)", summary.Points.Capacity))
		}
		ctx.renderer.RawStdout("\n")
	}
	if summary.Hours != nil {
		ctx.renderer.RawStdout(fmt.Sprintf("  hours: %.1f/%.1f\n", summary.Hours.Completed, summary.Hours.Committed))
	}
	for _, row := range summary.StatusBreakdown {
		ctx.renderer.RawStdout(fmt.Sprintf("  %-12s %d\n", row.Status, row.Count))
	}
	if len(summary.Blocked) > 0 {
		ctx.renderer.EmitWarning(fmt.Sprintf("%d blocked tasks: %v", len(summary.Blocked), summary.Blocked))
	}
}

func newSprintBurndownCommand() *cobra.Command {
	var metric string

	cmd := &cobra.Command{
		Use:   "burndown [sprint]",
		Short: "Daily burndown series with a linear ideal line",
		Args:  cobra.MaximumNArgs(1),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			records, err := ctx.sprints().List()
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			now := time.Now()
			record, err := sprint.ResolveSprintRef(records, ref, now)
			if err != nil {
				return err
			}

			resolved, err := ctx.resolvedFor("")
			if err != nil {
				return err
			}

			report := metrics.ComputeBurndown(record, ctx.membersOf(record), &resolved.Config, metrics.Metric(metric), now)
			sprintWarnings(ctx.renderer, report.Warnings)

			if ctx.renderer.JSON() {
				return ctx.renderer.EmitJSON(report)
			}

			rows := make([][]string, 0, len(report.Series))
			for _, point := range report.Series {
				remaining := strconv.Itoa(point.RemainingTasks)
				ideal := fmt.Sprintf("%.1f", point.IdealTasks)
				if point.RemainingPoints != nil {
					remaining = fmt.Sprintf("%.1f", *point.RemainingPoints)
					ideal = fmt.Sprintf("%.1f", *point.IdealPoints)
				}
				if point.RemainingHours != nil {
					remaining = fmt.Sprintf("%.1f", *point.RemainingHours)
					ideal = fmt.Sprintf("%.1f", *point.IdealHours)
				}
				rows = append(rows, []string{point.Date, remaining, ideal})
			}
			ctx.renderer.RawStdout(console.RenderTable(console.TableConfig{
				Headers: []string{"Date", "Remaining", "Ideal"},
				Rows:    rows,
				Title:   fmt.Sprintf("%s burndown (%s)", report.SprintLabel, report.Metric),
			}))
			return nil
		}),
	}

	cmd.Flags().StringVar(&metric, "metric", "tasks", "Estimation unit: tasks, points, or hours")
	return cmd
}

func newSprintVelocityCommand() *cobra.Command {
	var metric string
	var limit int
	var includeActive bool

	cmd := &cobra.Command{
		Use:   "velocity",
		Short: "Velocity over the trailing closed sprints",
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

			spinner := console.NewSpinner(fmt.Sprintf("Aggregating %d sprints", len(records)))
			spinner.Start()
			report := metrics.ComputeVelocity(records, ctx.membersOf, &resolved.Config, metrics.Metric(metric), limit, includeActive, time.Now())
			spinner.Stop()

			if ctx.renderer.JSON() {
				return ctx.renderer.EmitJSON(report)
			}

			rows := make([][]string, 0, len(report.Entries))
			for _, entry := range report.Entries {
				rows = append(rows, []string{
					"#" + strconv.Itoa(entry.SprintID),
					entry.SprintLabel,
					fmt.Sprintf("%.1f", entry.Committed),
					fmt.Sprintf("%.1f", entry.Completed),
					fmt.Sprintf("%.0f%%", entry.CompletionRatio*100),
					entry.Direction,
				})
			}
			ctx.renderer.RawStdout(console.RenderTable(console.TableConfig{
				Headers:   []string{"ID", "Sprint", "Committed", "Completed", "Ratio", "Trend"},
				Rows:      rows,
				Title:     fmt.Sprintf("Velocity (%s)", report.Metric),
				ShowTotal: true,
				TotalRow: []string{"", "average",
					fmt.Sprintf("%.1f", report.AverageCommitted),
					fmt.Sprintf("%.1f", report.AverageCompleted), "", ""},
			}))
			return nil
		}),
	}

	cmd.Flags().StringVar(&metric, "metric", "tasks", "Estimation unit: tasks, points, or hours")
	cmd.Flags().IntVar(&limit, "limit", constants.DefaultVelocityWindow, "How many closed sprints to include")
	cmd.Flags().BoolVar(&includeActive, "include-active", false, "Also include active sprints")
	return cmd
}
