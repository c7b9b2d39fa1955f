package metrics

import (
	"time"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
)

// Metric selects the estimation unit a report is computed in.
type Metric string

const (
	MetricTasks  Metric = "tasks"
	MetricPoints Metric = "points"
	MetricHours  Metric = "hours"
)

// BurndownPoint is one daily sample of the burndown series.
type BurndownPoint struct {
	Date            string   `json:"date"`
	RemainingTasks  int      `json:"remaining_tasks"`
	IdealTasks      float64  `json:"ideal_tasks"`
	RemainingPoints *float64 `json:"remaining_points,omitempty"`
	IdealPoints     *float64 `json:"ideal_points,omitempty"`
	RemainingHours  *float64 `json:"remaining_hours,omitempty"`
	IdealHours      *float64 `json:"ideal_hours,omitempty"`
}

// BurndownTotals carries the committed totals the series burns from.
type BurndownTotals struct {
	Tasks  int     `json:"tasks"`
	Points float64 `json:"points"`
	Hours  float64 `json:"hours"`
}

// Burndown is the daily burndown report for one sprint.
type Burndown struct {
	SprintID    int              `json:"sprint_id"`
	SprintLabel string           `json:"sprint_label"`
	Metric      Metric           `json:"metric"`
	Series      []BurndownPoint  `json:"series"`
	Totals      BurndownTotals   `json:"totals"`
	Warnings    []sprint.Warning `json:"warnings,omitempty"`
}

// ComputeBurndown samples remaining work per day over [start, min(now,end)].
// The ideal line interpolates linearly from the committed total to zero
// across the sprint's day span. When the requested metric has no estimates
// among the member tasks, the report falls back to tasks and warns.
//
// A task counts as burned on the day of the last history entry that moved
// its status to a done state; tasks done without such an entry burn on
// their modified date.
func ComputeBurndown(record *sprint.Record, members []*task.Task, cfg *config.Config, metric Metric, now time.Time) *Burndown {
	status := sprint.DeriveStatus(record.Sprint, now)

	b := &Burndown{
		SprintID:    record.ID,
		SprintLabel: sprint.DisplayName(record),
		Metric:      metric,
		Warnings:    record.Warnings,
	}

	for _, t := range members {
		b.Totals.Tasks++
		if effort, ok := ParseEffort(t.Effort); ok {
			b.Totals.Points += effort.Points
			b.Totals.Hours += effort.Hours
		}
	}

	switch metric {
	case MetricPoints:
		if b.Totals.Points == 0 {
			b.Metric = MetricTasks
			b.Warnings = append(b.Warnings, sprint.Warning{
				Code:    "metric_unavailable",
				Message: "no member task carries point estimates; falling back to tasks",
			})
		}
	case MetricHours:
		if b.Totals.Hours == 0 {
			b.Metric = MetricTasks
			b.Warnings = append(b.Warnings, sprint.Warning{
				Code:    "metric_unavailable",
				Message: "no member task carries hour estimates; falling back to tasks",
			})
		}
	}

	start := status.ActualStart
	if start.IsZero() {
		start = status.PlannedStart
	}
	end := status.ComputedEnd
	if start.IsZero() || end.IsZero() || !end.After(start.Time) {
		return b
	}

	sampleEnd := end.Time
	if now.Before(sampleEnd) {
		sampleEnd = now
	}

	startDay := start.Truncate(24 * time.Hour)
	endDay := sampleEnd.Truncate(24 * time.Hour)
	daySpan := end.Sub(start.Time).Hours() / 24

	for day := startDay; !day.After(endDay); day = day.Add(24 * time.Hour) {
		cutoff := day.Add(24 * time.Hour)

		point := BurndownPoint{Date: day.Format("2006-01-02")}

		var remainingPoints, remainingHours float64
		for _, t := range members {
			if doneBy(t, cfg, cutoff) {
				continue
			}
			point.RemainingTasks++
			if effort, ok := ParseEffort(t.Effort); ok {
				remainingPoints += effort.Points
				remainingHours += effort.Hours
			}
		}

		elapsed := day.Sub(startDay).Hours() / 24
		fraction := 1 - elapsed/daySpan
		if fraction < 0 {
			fraction = 0
		}
		point.IdealTasks = float64(b.Totals.Tasks) * fraction

		if b.Metric == MetricPoints {
			rp, ip := remainingPoints, b.Totals.Points*fraction
			point.RemainingPoints, point.IdealPoints = &rp, &ip
		}
		if b.Metric == MetricHours {
			rh, ih := remainingHours, b.Totals.Hours*fraction
			point.RemainingHours, point.IdealHours = &rh, &ih
		}

		b.Series = append(b.Series, point)
	}

	return b
}

// doneBy reports whether the task had reached a done status by the cutoff.
func doneBy(t *task.Task, cfg *config.Config, cutoff time.Time) bool {
	if !cfg.IsDone(t.Status) {
		return false
	}

	// Find the most recent status transition into a done state.
	for i := len(t.History) - 1; i >= 0; i-- {
		entry := t.History[i]
		for _, change := range entry.Changes {
			if change.Field == "status" && cfg.IsDone(change.New) {
				return entry.Date.Before(cutoff)
			}
		}
	}
	if !t.Modified.IsZero() {
		return t.Modified.Before(cutoff)
	}
	return true
}
