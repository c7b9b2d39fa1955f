package sprint

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/localtaskrepo/lotar/pkg/task"
)

// Outcome reports the effect of an assign/remove/move operation.
type Outcome struct {
	Action      string        `json:"action"`
	SprintID    int           `json:"sprint_id"`
	SprintLabel string        `json:"sprint_label"`
	Modified    []string      `json:"modified"`
	Unchanged   []string      `json:"unchanged"`
	Replaced    []Replacement `json:"replaced,omitempty"`
}

// Replacement records the sprints a task was pulled out of by force_single.
type Replacement struct {
	TaskID   string `json:"task_id"`
	Previous []int  `json:"previous"`
}

// ResolveSprintRef turns a user-supplied sprint token into a record:
// "#3" or "3" match by ID, anything else matches labels case-insensitively.
// An empty token infers the single active sprint; zero or multiple active
// sprints is an error.
func ResolveSprintRef(records []*Record, token string, now time.Time) (*Record, error) {
	if token == "" {
		var active []*Record
		for _, record := range records {
			state := DeriveStatus(record.Sprint, now).State
			if state == StateActive || state == StateOverdue {
				active = append(active, record)
			}
		}
		switch len(active) {
		case 1:
			return active[0], nil
		case 0:
			return nil, fmt.Errorf("no active sprint; pass --sprint to pick one")
		default:
			return nil, fmt.Errorf("%d sprints are active; pass --sprint to pick one", len(active))
		}
	}

	if id, err := strconv.Atoi(strings.TrimPrefix(token, "#")); err == nil {
		for _, record := range records {
			if record.ID == id {
				return record, nil
			}
		}
		return nil, &NotFoundError{ID: id}
	}

	for _, record := range records {
		if strings.EqualFold(record.Sprint.Plan.Label, token) {
			return record, nil
		}
	}
	return nil, fmt.Errorf("no sprint matches %q", token)
}

// LikelySprintReference reports whether a positional CLI token looks like a
// sprint reference rather than a task ID: "#<id>", a bare number, or an
// existing sprint label.
func LikelySprintReference(records []*Record, token string) bool {
	if strings.HasPrefix(token, "#") {
		return true
	}
	if _, err := strconv.Atoi(token); err == nil {
		return true
	}
	if _, _, ok := task.ParseID(token); ok {
		return false
	}
	for _, record := range records {
		if strings.EqualFold(record.Sprint.Plan.Label, token) {
			return true
		}
	}
	return false
}

// AssignTasks attaches tasks to a sprint, maintaining the task-side mirror
// in the same logical operation. Tasks already in the target land in
// Unchanged. With forceSingle, membership in any other sprint is removed
// and recorded in Replaced. Closed targets are rejected unless allowClosed.
func AssignTasks(tasks *task.Store, sprints *Store, records []*Record, taskIDs []string, sprintRef string, allowClosed, forceSingle bool) (*Outcome, error) {
	target, err := ResolveSprintRef(records, sprintRef, time.Now())
	if err != nil {
		return nil, err
	}
	if target.Sprint.Closed() && !allowClosed {
		return nil, &ConflictError{Message: DisplayName(target) + " is closed; use --force to assign into it"}
	}

	outcome := &Outcome{Action: "assign", SprintID: target.ID, SprintLabel: DisplayName(target)}
	sprintChanged := false
	otherChanged := map[int]*Record{}

	for _, id := range taskIDs {
		t, err := tasks.Get(id, "")
		if err != nil {
			return nil, err
		}

		if target.Sprint.HasTask(t.ID) {
			outcome.Unchanged = append(outcome.Unchanged, t.ID)
			continue
		}

		var previous []int
		if forceSingle {
			for _, record := range records {
				if record.ID == target.ID || !record.Sprint.HasTask(t.ID) {
					continue
				}
				removeRef(record.Sprint, t.ID)
				otherChanged[record.ID] = record
				previous = append(previous, record.ID)
			}
		}

		target.Sprint.Tasks = append(target.Sprint.Tasks, TaskRef{ID: t.ID})
		sprintChanged = true

		// Mirror on the task side: drop replaced memberships, add the target.
		var mirror []int
		for _, sid := range t.Sprints {
			replaced := false
			for _, prev := range previous {
				if sid == prev {
					replaced = true
				}
			}
			if !replaced && sid != target.ID {
				mirror = append(mirror, sid)
			}
		}
		t.Sprints = append(mirror, target.ID)
		if err := tasks.Save(t); err != nil {
			return nil, err
		}

		outcome.Modified = append(outcome.Modified, t.ID)
		if len(previous) > 0 {
			outcome.Replaced = append(outcome.Replaced, Replacement{TaskID: t.ID, Previous: previous})
		}
	}

	if sprintChanged {
		target.Sprint.Modified = task.Now()
		if err := sprints.Save(target.ID, target.Sprint); err != nil {
			return nil, err
		}
	}
	for id, record := range otherChanged {
		record.Sprint.Modified = task.Now()
		if err := sprints.Save(id, record.Sprint); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// RemoveTasks detaches tasks from a sprint; tasks that were not members
// land in Unchanged.
func RemoveTasks(tasks *task.Store, sprints *Store, records []*Record, taskIDs []string, sprintRef string) (*Outcome, error) {
	target, err := ResolveSprintRef(records, sprintRef, time.Now())
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Action: "remove", SprintID: target.ID, SprintLabel: DisplayName(target)}
	changed := false

	for _, id := range taskIDs {
		t, err := tasks.Get(id, "")
		if err != nil {
			return nil, err
		}

		if !target.Sprint.HasTask(t.ID) {
			outcome.Unchanged = append(outcome.Unchanged, t.ID)
			continue
		}

		removeRef(target.Sprint, t.ID)
		changed = true

		var mirror []int
		for _, sid := range t.Sprints {
			if sid != target.ID {
				mirror = append(mirror, sid)
			}
		}
		t.Sprints = mirror
		if err := tasks.Save(t); err != nil {
			return nil, err
		}
		outcome.Modified = append(outcome.Modified, t.ID)
	}

	if changed {
		target.Sprint.Modified = task.Now()
		if err := sprints.Save(target.ID, target.Sprint); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// MoveTasks reassigns tasks into the target sprint exclusively: an assign
// with force_single semantics. Crossing into a closed sprint still needs
// allowClosed.
func MoveTasks(tasks *task.Store, sprints *Store, records []*Record, taskIDs []string, sprintRef string, allowClosed bool) (*Outcome, error) {
	outcome, err := AssignTasks(tasks, sprints, records, taskIDs, sprintRef, allowClosed, true)
	if err != nil {
		return nil, err
	}
	outcome.Action = "move"
	return outcome, nil
}

// BacklogOptions filters the backlog query.
type BacklogOptions struct {
	Project  string
	Tags     []string
	Statuses []string
	Assignee string
	Limit    int
}

// FetchBacklog returns tasks that belong to no existing sprint, applying
// the same normalized matching as task listing. Membership is intersected
// with the sprint files that actually exist, so a dangling reference does
// not hide a task from the backlog.
func FetchBacklog(tasks *task.Store, records []*Record, opts BacklogOptions) ([]*task.Task, error) {
	existing := map[int]bool{}
	for _, record := range records {
		existing[record.ID] = true
	}

	match := func(t *task.Task) bool {
		for _, sid := range t.Sprints {
			if existing[sid] {
				return false
			}
		}
		if opts.Assignee != "" && !strings.EqualFold(t.Assignee, opts.Assignee) {
			return false
		}
		if len(opts.Statuses) > 0 && !containsFold(opts.Statuses, t.Status) {
			return false
		}
		if len(opts.Tags) > 0 {
			hit := false
			for _, want := range opts.Tags {
				if tagMatch(t.Tags, want) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		}
		return true
	}

	found, err := tasks.Search(opts.Project, match)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(found) > opts.Limit {
		found = found[:opts.Limit]
	}
	return found, nil
}

func removeRef(sp *Sprint, id string) {
	var kept []TaskRef
	for _, ref := range sp.Tasks {
		if ref.ID != id {
			kept = append(kept, ref)
		}
	}
	sp.Tasks = kept
}

func containsFold(haystack []string, needle string) bool {
	for _, v := range haystack {
		if normalizeTag(v) == normalizeTag(needle) {
			return true
		}
	}
	return false
}

func tagMatch(tags []string, want string) bool {
	normalizedWant := normalizeTag(want)
	for _, tag := range tags {
		if strings.Contains(normalizeTag(tag), normalizedWant) {
			return true
		}
	}
	return false
}

func normalizeTag(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, s)
}
