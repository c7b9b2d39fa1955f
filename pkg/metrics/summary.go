package metrics

import (
	"sort"
	"time"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
)

// UnitTotals aggregates one estimation unit across committed and done work.
type UnitTotals struct {
	Committed float64 `json:"committed"`
	Completed float64 `json:"completed"`
	Capacity  float64 `json:"capacity,omitempty"`
}

// StatusCount is one row of the status breakdown, ordered by the
// configured issue states.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Summary is the core sprint report.
type Summary struct {
	SprintID        int              `json:"sprint_id"`
	SprintLabel     string           `json:"sprint_label"`
	State           sprint.State     `json:"state"`
	Committed       int              `json:"committed"`
	Done            int              `json:"done"`
	Remaining       int              `json:"remaining"`
	CompletionRatio float64          `json:"completion_ratio"`
	Points          *UnitTotals      `json:"points,omitempty"`
	Hours           *UnitTotals      `json:"hours,omitempty"`
	StatusBreakdown []StatusCount    `json:"status_breakdown"`
	Blocked         []string         `json:"blocked,omitempty"`
	Warnings        []sprint.Warning `json:"warnings,omitempty"`
}

// Summarize computes the Summary for a sprint over its member task
// snapshot. Points and hours totals only appear when at least one member
// task carries that unit.
func Summarize(record *sprint.Record, members []*task.Task, cfg *config.Config, now time.Time) *Summary {
	status := sprint.DeriveStatus(record.Sprint, now)

	s := &Summary{
		SprintID:    record.ID,
		SprintLabel: sprint.DisplayName(record),
		State:       status.State,
		Committed:   len(members),
		Warnings:    record.Warnings,
	}

	var points, hours UnitTotals
	havePoints, haveHours := false, false
	breakdown := map[string]int{}

	for _, t := range members {
		done := cfg.IsDone(t.Status)
		if done {
			s.Done++
		}
		breakdown[t.Status]++

		if t.Relationships != nil && len(t.Relationships.BlockedBy) > 0 && !done {
			s.Blocked = append(s.Blocked, t.ID)
		}

		if effort, ok := ParseEffort(t.Effort); ok {
			if effort.Points > 0 {
				havePoints = true
				points.Committed += effort.Points
				if done {
					points.Completed += effort.Points
				}
			}
			if effort.Hours > 0 {
				haveHours = true
				hours.Committed += effort.Hours
				if done {
					hours.Completed += effort.Hours
				}
			}
		}
	}

	s.Remaining = s.Committed - s.Done
	if s.Committed > 0 {
		s.CompletionRatio = float64(s.Done) / float64(s.Committed)
	}

	if capacity := record.Sprint.Plan.Capacity; capacity != nil {
		points.Capacity = capacity.Points
		hours.Capacity = capacity.Hours
	}
	if havePoints {
		s.Points = &points
	}
	if haveHours {
		s.Hours = &hours
	}

	// Breakdown ordered by the configured states, unknown statuses after.
	seen := map[string]bool{}
	for _, state := range cfg.IssueStates {
		if count := breakdown[state]; count > 0 {
			s.StatusBreakdown = append(s.StatusBreakdown, StatusCount{Status: state, Count: count})
			seen[state] = true
		}
	}
	var rest []string
	for status := range breakdown {
		if !seen[status] {
			rest = append(rest, status)
		}
	}
	sort.Strings(rest)
	for _, status := range rest {
		s.StatusBreakdown = append(s.StatusBreakdown, StatusCount{Status: status, Count: breakdown[status]})
	}

	return s
}

// ReviewItem is one open work item in a sprint review.
type ReviewItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Assignee string `json:"assignee,omitempty"`
}

// Review is the remaining-work view of a sprint.
type Review struct {
	Summary *Summary     `json:"summary"`
	Open    []ReviewItem `json:"open"`
}

// Reviewed builds the review: the summary plus every non-done member task
// with its assignee.
func Reviewed(record *sprint.Record, members []*task.Task, cfg *config.Config, now time.Time) *Review {
	review := &Review{Summary: Summarize(record, members, cfg, now)}
	for _, t := range members {
		if cfg.IsDone(t.Status) {
			continue
		}
		review.Open = append(review.Open, ReviewItem{
			ID:       t.ID,
			Title:    t.Title,
			Status:   t.Status,
			Assignee: t.Assignee,
		})
	}
	return review
}

// Timeline holds the duration breakdown for stats.
type Timeline struct {
	Planned   string `json:"planned,omitempty"`
	Actual    string `json:"actual,omitempty"`
	Elapsed   string `json:"elapsed,omitempty"`
	Remaining string `json:"remaining,omitempty"`
	Overdue   string `json:"overdue,omitempty"`
}

// Stats is the summary plus the full timeline.
type Stats struct {
	Summary  *Summary               `json:"summary"`
	Status   sprint.LifecycleStatus `json:"lifecycle"`
	Timeline Timeline               `json:"timeline"`
}

// Statistics computes Stats at the given instant.
func Statistics(record *sprint.Record, members []*task.Task, cfg *config.Config, now time.Time) *Stats {
	status := sprint.DeriveStatus(record.Sprint, now)
	stats := &Stats{
		Summary: Summarize(record, members, cfg, now),
		Status:  status,
	}

	if !status.PlannedStart.IsZero() && !status.PlannedEnd.IsZero() {
		stats.Timeline.Planned = status.PlannedEnd.Sub(status.PlannedStart.Time).String()
	}
	if !status.ActualStart.IsZero() {
		if !status.ActualEnd.IsZero() {
			stats.Timeline.Actual = status.ActualEnd.Sub(status.ActualStart.Time).String()
		} else {
			stats.Timeline.Elapsed = now.Sub(status.ActualStart.Time).String()
		}
	}
	if !status.ComputedEnd.IsZero() && status.ActualEnd.IsZero() {
		if now.Before(status.ComputedEnd.Time) {
			stats.Timeline.Remaining = status.ComputedEnd.Sub(now).String()
		} else {
			stats.Timeline.Overdue = now.Sub(status.ComputedEnd.Time).String()
		}
	}
	return stats
}
