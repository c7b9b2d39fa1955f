// Package sprint implements the sprint store and the subsystems built on it:
// canonicalization with structured warnings, derived lifecycle state,
// reference integrity against the task store, and task assignment.
package sprint

import (
	"fmt"
	"strings"
	"time"

	"github.com/localtaskrepo/lotar/pkg/task"
)

// Capacity is the planned sprint capacity in points and/or hours.
type Capacity struct {
	Points float64 `yaml:"points,omitempty" json:"points,omitempty"`
	Hours  float64 `yaml:"hours,omitempty" json:"hours,omitempty"`
}

// Plan holds the user-authored sprint plan.
type Plan struct {
	Label        string         `yaml:"label,omitempty" json:"label,omitempty"`
	Goal         string         `yaml:"goal,omitempty" json:"goal,omitempty"`
	Length       string         `yaml:"length,omitempty" json:"length,omitempty"`
	StartsAt     task.Timestamp `yaml:"starts_at,omitempty" json:"starts_at,omitempty"`
	EndsAt       task.Timestamp `yaml:"ends_at,omitempty" json:"ends_at,omitempty"`
	Capacity     *Capacity      `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	OverdueAfter string         `yaml:"overdue_after,omitempty" json:"overdue_after,omitempty"`
	Notes        string         `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// Actual records what actually happened to the sprint.
type Actual struct {
	StartedAt task.Timestamp `yaml:"started_at,omitempty" json:"started_at,omitempty"`
	ClosedAt  task.Timestamp `yaml:"closed_at,omitempty" json:"closed_at,omitempty"`
}

// TaskRef is one ordered sprint membership entry.
type TaskRef struct {
	ID    string `yaml:"id" json:"id"`
	Order *int   `yaml:"order,omitempty" json:"order,omitempty"`
}

// Sprint is the canonical on-disk sprint shape. The ID is the numeric file
// stem, not a stored field.
type Sprint struct {
	Plan     Plan                `yaml:"plan" json:"plan"`
	Actual   *Actual             `yaml:"actual,omitempty" json:"actual,omitempty"`
	Tasks    []TaskRef           `yaml:"tasks,omitempty" json:"tasks,omitempty"`
	History  []task.HistoryEntry `yaml:"history,omitempty" json:"history,omitempty"`
	Created  task.Timestamp      `yaml:"created" json:"created"`
	Modified task.Timestamp      `yaml:"modified" json:"modified"`

	// Extra preserves unknown keys across the canonical rewrite.
	Extra map[string]any `yaml:"-" json:"-"`
}

// Record couples a sprint with its file ID and any canonicalization warnings
// raised on load. Warnings never persist by themselves; only explicit writes
// change disk.
type Record struct {
	ID       int       `json:"id"`
	Sprint   *Sprint   `json:"sprint"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Warning is a structured canonicalization or lifecycle notice.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WarnPlanLengthIgnored is raised when plan.length is dropped because
// plan.ends_at pins the end explicitly.
const WarnPlanLengthIgnored = "plan_length_ignored_when_ends_at"

// HasTask reports whether the sprint's task list contains id.
func (s *Sprint) HasTask(id string) bool {
	for _, ref := range s.Tasks {
		if ref.ID == id {
			return true
		}
	}
	return false
}

// Started reports whether the sprint has an actual start.
func (s *Sprint) Started() bool {
	return s.Actual != nil && !s.Actual.StartedAt.IsZero()
}

// Closed reports whether the sprint has an actual close.
func (s *Sprint) Closed() bool {
	return s.Actual != nil && !s.Actual.ClosedAt.IsZero()
}

// DisplayName returns the label when set, else "Sprint <id>".
func DisplayName(r *Record) string {
	if r.Sprint != nil && r.Sprint.Plan.Label != "" {
		return r.Sprint.Plan.Label
	}
	return fmt.Sprintf("Sprint %d", r.ID)
}

// ParseLength parses plan length / overdue_after strings: "2w", "10d",
// "8h", "90m", or combinations like "1w2d".
func ParseLength(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var total time.Duration
	value := 0
	digits := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			value = value*10 + int(r-'0')
			digits = true
		case r == 'w' || r == 'd' || r == 'h' || r == 'm':
			if !digits {
				return 0, fmt.Errorf("invalid duration %q", raw)
			}
			switch r {
			case 'w':
				total += time.Duration(value) * 7 * 24 * time.Hour
			case 'd':
				total += time.Duration(value) * 24 * time.Hour
			case 'h':
				total += time.Duration(value) * time.Hour
			case 'm':
				total += time.Duration(value) * time.Minute
			}
			value = 0
			digits = false
		case r == ' ':
		default:
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
	}
	if digits {
		return 0, fmt.Errorf("duration %q is missing a unit (w, d, h, m)", raw)
	}
	if total == 0 {
		return 0, fmt.Errorf("duration %q is zero", raw)
	}
	return total, nil
}
