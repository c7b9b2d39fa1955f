package sprint

import (
	"sort"

	"github.com/localtaskrepo/lotar/pkg/task"
)

// MissingReport summarizes dangling sprint references found by a scan.
type MissingReport struct {
	MissingSprints   []int `json:"missing_sprints"`
	TasksWithMissing int   `json:"tasks_with_missing"`
}

// CleanupOutcome reports what a cleanup pass changed.
type CleanupOutcome struct {
	ScannedTasks      int             `json:"scanned_tasks"`
	UpdatedTasks      int             `json:"updated_tasks"`
	RemovedReferences int             `json:"removed_references"`
	RemovedBySprint   []SprintRemoval `json:"removed_by_sprint,omitempty"`
	MissingSprints    []int           `json:"missing_sprints"`
	RemainingMissing  []int           `json:"remaining_missing"`
}

// SprintRemoval counts removed references per missing sprint ID.
type SprintRemoval struct {
	SprintID int `json:"sprint_id"`
	Count    int `json:"count"`
}

// DetectMissing walks every task's sprint mirror and compares against the
// sprint files that actually exist. Pure over the given snapshot.
func DetectMissing(tasks *task.Store, records []*Record) (*MissingReport, error) {
	existing := map[int]bool{}
	for _, record := range records {
		existing[record.ID] = true
	}

	all, err := tasks.Search("", nil)
	if err != nil {
		return nil, err
	}

	missingSet := map[int]bool{}
	tasksWithMissing := 0
	for _, t := range all {
		hit := false
		for _, id := range t.Sprints {
			if !existing[id] {
				missingSet[id] = true
				hit = true
			}
		}
		if hit {
			tasksWithMissing++
		}
	}

	report := &MissingReport{TasksWithMissing: tasksWithMissing, MissingSprints: sortedKeys(missingSet)}
	return report, nil
}

// Cleanup removes dangling sprint references from tasks. With targeted set
// (non-zero) only references to that sprint are swept; otherwise every
// reference to a nonexistent sprint goes. Idempotent: a second pass on
// unchanged state reports zero changes.
func Cleanup(tasks *task.Store, records []*Record, targeted int) (*CleanupOutcome, error) {
	existing := map[int]bool{}
	for _, record := range records {
		existing[record.ID] = true
	}

	all, err := tasks.Search("", nil)
	if err != nil {
		return nil, err
	}

	outcome := &CleanupOutcome{ScannedTasks: len(all)}
	removedBy := map[int]int{}
	missingSet := map[int]bool{}
	remainingSet := map[int]bool{}

	for _, t := range all {
		var kept []int
		changed := false
		for _, id := range t.Sprints {
			if existing[id] {
				kept = append(kept, id)
				continue
			}
			missingSet[id] = true
			if targeted != 0 && id != targeted {
				kept = append(kept, id)
				remainingSet[id] = true
				continue
			}
			removedBy[id]++
			outcome.RemovedReferences++
			changed = true
		}
		if changed {
			t.Sprints = kept
			if err := tasks.Save(t); err != nil {
				return nil, err
			}
			outcome.UpdatedTasks++
		}
	}

	outcome.MissingSprints = sortedKeys(missingSet)
	outcome.RemainingMissing = sortedKeys(remainingSet)
	for _, id := range sortedKeys(missingSet) {
		if count := removedBy[id]; count > 0 {
			outcome.RemovedBySprint = append(outcome.RemovedBySprint, SprintRemoval{SprintID: id, Count: count})
		}
	}
	return outcome, nil
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
