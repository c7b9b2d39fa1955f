package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/console"
	"github.com/localtaskrepo/lotar/pkg/sprint"
)

func newSprintCalendarCommand() *cobra.Command {
	var monthFlag string

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Month grid of sprint spans",
		Long: `Month grid of sprint spans.

Days covered by a sprint are marked with an asterisk, and a legend lists
each sprint's ID and label. A marked day is highlighted when the
lowest-numbered sprint covering it is active or overdue. JSON mode returns
the day-to-sprint mapping instead.`,
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			records, err := ctx.sprints().List()
			if err != nil {
				return err
			}

			now := time.Now()
			month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			if monthFlag != "" {
				parsed, err := time.Parse("2006-01", monthFlag)
				if err != nil {
					return fmt.Errorf("invalid --month %q (expected YYYY-MM)", monthFlag)
				}
				month = parsed
			}
			next := month.AddDate(0, 1, 0)

			// Map each day of the month to the sprints covering it.
			days := map[string][]int{}
			active := map[int]bool{}
			for _, record := range records {
				status := sprint.DeriveStatus(record.Sprint, now)
				if status.State == sprint.StateActive || status.State == sprint.StateOverdue {
					active[record.ID] = true
				}
				start := status.ActualStart
				if start.IsZero() {
					start = status.PlannedStart
				}
				end := status.ComputedEnd
				if start.IsZero() || end.IsZero() {
					continue
				}
				for day := start.Truncate(24 * time.Hour); !day.After(end.Time); day = day.Add(24 * time.Hour) {
					if day.Before(month) || !day.Before(next) {
						continue
					}
					key := day.Format("2006-01-02")
					days[key] = append(days[key], record.ID)
				}
			}

			if ctx.renderer.JSON() {
				return ctx.renderer.EmitJSON(map[string]any{
					"month": month.Format("2006-01"),
					"days":  days,
				})
			}

			var b strings.Builder
			b.WriteString(console.FormatListHeader(month.Format("January 2006")) + "\n")
			b.WriteString(" Mo  Tu  We  Th  Fr  Sa  Su\n")

			// Monday-first column offset for the 1st.
			offset := (int(month.Weekday()) + 6) % 7
			b.WriteString(strings.Repeat("    ", offset))

			column := offset
			for day := month; day.Before(next); day = day.AddDate(0, 0, 1) {
				cell := fmt.Sprintf("%3d", day.Day())
				if ids := days[day.Format("2006-01-02")]; len(ids) > 0 {
					sort.Ints(ids)
					cell = fmt.Sprintf("%2d*", day.Day())
					if active[ids[0]] {
						cell = console.FormatTaskID(cell)
					}
				}
				b.WriteString(cell + " ")
				column++
				if column%7 == 0 {
					b.WriteString("\n")
				}
			}
			if column%7 != 0 {
				b.WriteString("\n")
			}

			var legend []string
			for _, record := range records {
				legend = append(legend, fmt.Sprintf("#%d %s", record.ID, sprint.DisplayName(record)))
			}
			if len(legend) > 0 {
				b.WriteString("\n" + strings.Join(legend, "  ") + "\n")
			}
			ctx.renderer.RawStdout(b.String())
			return nil
		}),
	}

	cmd.Flags().StringVar(&monthFlag, "month", "", "Month to render (YYYY-MM, defaults to the current month)")
	return cmd
}
