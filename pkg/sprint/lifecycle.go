package sprint

import (
	"time"

	"github.com/localtaskrepo/lotar/pkg/task"
)

// State is the derived sprint lifecycle state. Never stored.
type State string

const (
	StatePending  State = "pending"
	StateActive   State = "active"
	StateOverdue  State = "overdue"
	StateComplete State = "complete"
)

// LifecycleStatus is the full derived view of where a sprint stands.
type LifecycleStatus struct {
	State        State          `json:"state"`
	PlannedStart task.Timestamp `json:"planned_start,omitempty"`
	PlannedEnd   task.Timestamp `json:"planned_end,omitempty"`
	ComputedEnd  task.Timestamp `json:"computed_end,omitempty"`
	ActualStart  task.Timestamp `json:"actual_start,omitempty"`
	ActualEnd    task.Timestamp `json:"actual_end,omitempty"`
	Warnings     []Warning      `json:"warnings,omitempty"`
}

// DeriveStatus computes the lifecycle view at the given instant. Pure: no
// disk access, no mutation of the sprint.
//
// planned_end is plan.ends_at when set, else planned_start + plan.length.
// computed_end is actual_end, else planned_end, else actual_start +
// plan.length when both are known. An overdue_after grace extends the
// overdue boundary past computed_end.
func DeriveStatus(sp *Sprint, now time.Time) LifecycleStatus {
	status := LifecycleStatus{State: StatePending}

	status.PlannedStart = sp.Plan.StartsAt
	if sp.Actual != nil {
		status.ActualStart = sp.Actual.StartedAt
		status.ActualEnd = sp.Actual.ClosedAt
	}

	var length time.Duration
	var lengthKnown bool
	if sp.Plan.Length != "" {
		if parsed, err := ParseLength(sp.Plan.Length); err == nil {
			length = parsed
			lengthKnown = true
		} else {
			status.Warnings = append(status.Warnings, Warning{
				Code:    "invalid_plan_length",
				Message: "plan.length could not be parsed: " + sp.Plan.Length,
			})
		}
	}

	switch {
	case !sp.Plan.EndsAt.IsZero():
		status.PlannedEnd = sp.Plan.EndsAt
	case !status.PlannedStart.IsZero() && lengthKnown:
		status.PlannedEnd = task.At(status.PlannedStart.Add(length))
	}

	switch {
	case !status.ActualEnd.IsZero():
		status.ComputedEnd = status.ActualEnd
	case !status.PlannedEnd.IsZero():
		status.ComputedEnd = status.PlannedEnd
	case !status.ActualStart.IsZero() && lengthKnown:
		status.ComputedEnd = task.At(status.ActualStart.Add(length))
	}

	if !status.ActualEnd.IsZero() {
		status.State = StateComplete
		return status
	}
	if status.ActualStart.IsZero() {
		return status
	}

	status.State = StateActive
	if !status.ComputedEnd.IsZero() {
		boundary := status.ComputedEnd.Time
		if sp.Plan.OverdueAfter != "" {
			if grace, err := ParseLength(sp.Plan.OverdueAfter); err == nil {
				boundary = boundary.Add(grace)
			}
		}
		if now.After(boundary) {
			status.State = StateOverdue
		}
	}
	return status
}

// StartOutcome reports what Start did, including the guardrail warnings.
type StartOutcome struct {
	Record   *Record   `json:"record"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// ConflictError reports a lifecycle transition refused without --force.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Start stamps actual.started_at, enforcing the transition guardrails:
// re-starting a started or closed sprint needs force; starting far in the
// future, with other sprints active, or past the planned start only warns.
func Start(store *Store, records []*Record, id int, at time.Time, force bool) (*StartOutcome, error) {
	var target *Record
	for _, record := range records {
		if record.ID == id {
			target = record
		}
	}
	if target == nil {
		return nil, &NotFoundError{ID: id}
	}
	sp := target.Sprint

	if sp.Closed() && !force {
		return nil, &ConflictError{Message: DisplayName(target) + " is closed; use --force to restart it"}
	}
	if sp.Started() && !force {
		return nil, &ConflictError{Message: DisplayName(target) + " is already started; use --force to restart it"}
	}

	var warnings []Warning
	now := time.Now()
	if at.After(now.Add(12 * time.Hour)) {
		warnings = append(warnings, Warning{
			Code:    "start_in_future",
			Message: "start time is more than 12 hours in the future",
		})
	}
	for _, other := range records {
		if other.ID == id {
			continue
		}
		state := DeriveStatus(other.Sprint, now).State
		if state == StateActive || state == StateOverdue {
			warnings = append(warnings, Warning{
				Code:    "other_sprint_active",
				Message: DisplayName(other) + " is still active",
			})
		}
	}
	if !sp.Plan.StartsAt.IsZero() && at.After(sp.Plan.StartsAt.Time) {
		warnings = append(warnings, Warning{
			Code:    "planned_start_past",
			Message: "planned start is already past; the sprint begins behind its plan",
		})
	}

	if sp.Actual == nil {
		sp.Actual = &Actual{}
	}
	sp.Actual.StartedAt = task.At(at)
	if force && sp.Closed() {
		sp.Actual.ClosedAt = task.Timestamp{}
	}

	record, err := store.Update(id, sp)
	if err != nil {
		return nil, err
	}
	return &StartOutcome{Record: record, Warnings: warnings}, nil
}

// Close stamps actual.closed_at. Closing an un-started sprint or re-closing
// needs force; closing after the computed end only warns.
func Close(store *Store, records []*Record, id int, at time.Time, force bool) (*StartOutcome, error) {
	var target *Record
	for _, record := range records {
		if record.ID == id {
			target = record
		}
	}
	if target == nil {
		return nil, &NotFoundError{ID: id}
	}
	sp := target.Sprint

	if !sp.Started() && !force {
		return nil, &ConflictError{Message: DisplayName(target) + " has not started; use --force to close it anyway"}
	}
	if sp.Closed() && !force {
		return nil, &ConflictError{Message: DisplayName(target) + " is already closed; use --force to re-close it"}
	}

	var warnings []Warning
	status := DeriveStatus(sp, at)
	if !status.ComputedEnd.IsZero() && at.After(status.ComputedEnd.Time) {
		warnings = append(warnings, Warning{
			Code:    "closed_after_end",
			Message: "close time is after the computed sprint end",
		})
	}

	if sp.Actual == nil {
		sp.Actual = &Actual{}
	}
	sp.Actual.ClosedAt = task.At(at)

	record, err := store.Update(id, sp)
	if err != nil {
		return nil, err
	}
	return &StartOutcome{Record: record, Warnings: warnings}, nil
}
