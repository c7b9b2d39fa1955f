package metrics

import (
	"time"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
)

// VelocityEntry is one sprint's contribution to the velocity report.
type VelocityEntry struct {
	SprintID        int          `json:"sprint_id"`
	SprintLabel     string       `json:"sprint_label"`
	State           sprint.State `json:"state"`
	Committed       float64      `json:"committed"`
	Completed       float64      `json:"completed"`
	CompletionRatio float64      `json:"completion_ratio"`
	Direction       string       `json:"direction,omitempty"`
}

// Velocity is the trailing-sprint throughput report.
type Velocity struct {
	Metric           Metric          `json:"metric"`
	Entries          []VelocityEntry `json:"entries"`
	AverageCommitted float64         `json:"average_committed"`
	AverageCompleted float64         `json:"average_completed"`
}

// ComputeVelocity walks the last limit sprints (closed only, unless
// includeActive) oldest first and aggregates committed vs completed work in
// the requested metric. Direction compares each entry's completed amount to
// the previous included entry.
func ComputeVelocity(records []*sprint.Record, membersOf func(*sprint.Record) []*task.Task, cfg *config.Config, metric Metric, limit int, includeActive bool, now time.Time) *Velocity {
	if limit <= 0 {
		limit = 6
	}

	v := &Velocity{Metric: metric}

	var included []*sprint.Record
	for i := len(records) - 1; i >= 0 && len(included) < limit; i-- {
		record := records[i]
		state := sprint.DeriveStatus(record.Sprint, now).State
		if state == sprint.StateComplete || (includeActive && (state == sprint.StateActive || state == sprint.StateOverdue)) {
			included = append(included, record)
		}
	}
	// Restore chronological order.
	for i, j := 0, len(included)-1; i < j; i, j = i+1, j-1 {
		included[i], included[j] = included[j], included[i]
	}

	var previousCompleted float64
	for i, record := range included {
		members := membersOf(record)

		var committed, completed float64
		for _, t := range members {
			amount := 1.0
			if metric != MetricTasks {
				effort, ok := ParseEffort(t.Effort)
				if !ok {
					continue
				}
				if metric == MetricPoints {
					amount = effort.Points
				} else {
					amount = effort.Hours
				}
				if amount == 0 {
					continue
				}
			}
			committed += amount
			if cfg.IsDone(t.Status) {
				completed += amount
			}
		}

		entry := VelocityEntry{
			SprintID:    record.ID,
			SprintLabel: sprint.DisplayName(record),
			State:       sprint.DeriveStatus(record.Sprint, now).State,
			Committed:   committed,
			Completed:   completed,
		}
		if committed > 0 {
			entry.CompletionRatio = completed / committed
		}
		if i > 0 {
			switch {
			case completed > previousCompleted:
				entry.Direction = "up"
			case completed < previousCompleted:
				entry.Direction = "down"
			default:
				entry.Direction = "flat"
			}
		}
		previousCompleted = completed

		v.Entries = append(v.Entries, entry)
	}

	if n := float64(len(v.Entries)); n > 0 {
		var committedSum, completedSum float64
		for _, entry := range v.Entries {
			committedSum += entry.Committed
			completedSum += entry.Completed
		}
		v.AverageCommitted = committedSum / n
		v.AverageCompleted = completedSum / n
	}
	return v
}
