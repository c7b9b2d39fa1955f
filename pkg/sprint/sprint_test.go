package sprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/task"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

func testStores(t *testing.T) (*task.Store, *Store) {
	t.Helper()
	t.Setenv("LOTAR_HOME_CONFIG", filepath.Join(t.TempDir(), "absent.yml"))
	t.Setenv("LOTAR_PORT", "")
	t.Setenv("LOTAR_PROJECT", "")
	t.Setenv("LOTAR_DEFAULT_ASSIGNEE", "")
	t.Setenv("LOTAR_DEFAULT_REPORTER", "tester")
	ws := workspace.New(filepath.Join(t.TempDir(), ".tasks"))
	return task.NewStore(ws), NewStore(ws)
}

func mustCreate(t *testing.T, s *Store, sp *Sprint) *Record {
	t.Helper()
	record, _, err := s.Create(sp, nil)
	require.NoError(t, err)
	return record
}

func TestParseLength(t *testing.T) {
	d, err := ParseLength("2w")
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, d)

	d, err = ParseLength("1w2d")
	require.NoError(t, err)
	assert.Equal(t, 9*24*time.Hour, d)

	for _, bad := range []string{"", "w", "2", "2x", "abc"} {
		_, err := ParseLength(bad)
		assert.Error(t, err, bad)
	}
}

func TestCanonicalizeDropsLengthWhenEndsAt(t *testing.T) {
	_, s := testStores(t)
	sp := &Sprint{Plan: Plan{
		Label:  "X",
		Length: "2w",
		EndsAt: task.At(time.Date(2030, 1, 15, 17, 0, 0, 0, time.UTC)),
	}}

	record, _, err := s.Create(sp, nil)
	require.NoError(t, err)
	require.Len(t, record.Warnings, 1)
	assert.Equal(t, WarnPlanLengthIgnored, record.Warnings[0].Code)
	assert.Contains(t, record.Warnings[0].Message, "plan.length was ignored")

	data, err := os.ReadFile(s.Workspace().SprintFilePath(record.ID))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ends_at")
	assert.NotContains(t, string(data), "length")
}

func TestCreateAppliesOnlyUnsetDefaults(t *testing.T) {
	_, s := testStores(t)
	defaults := &config.SprintDefaults{Length: "2w", CapacityPoints: 20}

	record, applied, err := s.Create(&Sprint{Plan: Plan{Label: "A", Length: "1w"}}, defaults)
	require.NoError(t, err)
	assert.Equal(t, "1w", record.Sprint.Plan.Length)
	assert.NotContains(t, applied, "length")
	assert.Contains(t, applied, "capacity")
	assert.Equal(t, 20.0, record.Sprint.Plan.Capacity.Points)
}

func TestNextIDAndList(t *testing.T) {
	_, s := testStores(t)
	first := mustCreate(t, s, &Sprint{Plan: Plan{Label: "one"}})
	second := mustCreate(t, s, &Sprint{Plan: Plan{Label: "two"}})
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "one", records[0].Sprint.Plan.Label)
}

func TestDelete(t *testing.T) {
	_, s := testStores(t)
	record := mustCreate(t, s, &Sprint{Plan: Plan{Label: "gone"}})

	existed, err := s.Delete(record.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Delete(record.ID)
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestNormalizeCheckMode(t *testing.T) {
	_, s := testStores(t)
	record := mustCreate(t, s, &Sprint{Plan: Plan{Label: "tidy"}})

	results, err := s.Normalize(true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Changed)

	// Hand-edit with a non-canonical rendering: check mode flags it,
	// write mode fixes it, and a second check is clean.
	path := s.Workspace().SprintFilePath(record.ID)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append([]byte("# comment\n"), data...), 0o644))

	results, err = s.Normalize(true)
	require.NoError(t, err)
	assert.True(t, results[0].Changed)

	_, err = s.Normalize(false)
	require.NoError(t, err)
	results, err = s.Normalize(true)
	require.NoError(t, err)
	assert.False(t, results[0].Changed)
}

func TestDeriveStatusStates(t *testing.T) {
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	pending := &Sprint{Plan: Plan{Length: "1w"}}
	assert.Equal(t, StatePending, DeriveStatus(pending, now).State)

	active := &Sprint{
		Plan:   Plan{Length: "1w"},
		Actual: &Actual{StartedAt: task.At(now.Add(-24 * time.Hour))},
	}
	assert.Equal(t, StateActive, DeriveStatus(active, now).State)

	overdue := &Sprint{
		Plan:   Plan{Length: "1w"},
		Actual: &Actual{StartedAt: task.At(now.Add(-10 * 24 * time.Hour))},
	}
	assert.Equal(t, StateOverdue, DeriveStatus(overdue, now).State)

	complete := &Sprint{
		Plan: Plan{Length: "1w"},
		Actual: &Actual{
			StartedAt: task.At(now.Add(-10 * 24 * time.Hour)),
			ClosedAt:  task.At(now.Add(-2 * 24 * time.Hour)),
		},
	}
	assert.Equal(t, StateComplete, DeriveStatus(complete, now).State)
}

func TestDeriveStatusEnds(t *testing.T) {
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	start := task.At(time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC))
	ends := task.At(time.Date(2030, 5, 20, 0, 0, 0, 0, time.UTC))

	sp := &Sprint{Plan: Plan{StartsAt: start, EndsAt: ends}}
	status := DeriveStatus(sp, now)
	assert.Equal(t, ends, status.PlannedEnd)
	assert.Equal(t, ends, status.ComputedEnd)

	sp = &Sprint{Plan: Plan{StartsAt: start, Length: "2w"}}
	status = DeriveStatus(sp, now)
	assert.Equal(t, task.At(start.Add(14*24*time.Hour)), status.PlannedEnd)
}

func TestDeriveStatusOverdueGrace(t *testing.T) {
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	sp := &Sprint{
		Plan:   Plan{Length: "1w", OverdueAfter: "1w"},
		Actual: &Actual{StartedAt: task.At(now.Add(-10 * 24 * time.Hour))},
	}
	// 10 days in with a 7 day length but 7 more days of grace: still active.
	assert.Equal(t, StateActive, DeriveStatus(sp, now).State)
}

func TestStartGuardrails(t *testing.T) {
	_, s := testStores(t)
	mustCreate(t, s, &Sprint{Plan: Plan{Label: "A", Length: "1w"}})

	records, err := s.List()
	require.NoError(t, err)
	outcome, err := Start(s, records, 1, time.Now(), false)
	require.NoError(t, err)
	assert.True(t, outcome.Record.Sprint.Started())

	records, _ = s.List()
	_, err = Start(s, records, 1, time.Now(), false)
	require.Error(t, err)
	_, ok := err.(*ConflictError)
	assert.True(t, ok)

	records, _ = s.List()
	_, err = Start(s, records, 1, time.Now(), true)
	require.NoError(t, err)
}

func TestStartWarnsAboutOtherActive(t *testing.T) {
	_, s := testStores(t)
	mustCreate(t, s, &Sprint{Plan: Plan{Label: "A", Length: "4w"}})
	mustCreate(t, s, &Sprint{Plan: Plan{Label: "B", Length: "4w"}})

	records, _ := s.List()
	_, err := Start(s, records, 1, time.Now(), false)
	require.NoError(t, err)

	records, _ = s.List()
	outcome, err := Start(s, records, 2, time.Now(), false)
	require.NoError(t, err)
	codes := warningCodes(outcome.Warnings)
	assert.Contains(t, codes, "other_sprint_active")
}

func TestCloseGuardrails(t *testing.T) {
	_, s := testStores(t)
	mustCreate(t, s, &Sprint{Plan: Plan{Label: "A", Length: "1w"}})

	records, _ := s.List()
	_, err := Close(s, records, 1, time.Now(), false)
	require.Error(t, err) // not started

	_, err = Close(s, records, 1, time.Now(), true)
	require.NoError(t, err)

	records, _ = s.List()
	_, err = Close(s, records, 1, time.Now(), false)
	require.Error(t, err) // already closed
}

func warningCodes(warnings []Warning) []string {
	var codes []string
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	return codes
}

func TestAssignAndForceSingle(t *testing.T) {
	ts, s := testStores(t)
	_, err := ts.Create(task.CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)
	mustCreate(t, s, &Sprint{Plan: Plan{Label: "one"}})
	mustCreate(t, s, &Sprint{Plan: Plan{Label: "two"}})

	records, _ := s.List()
	outcome, err := AssignTasks(ts, s, records, []string{"TEST-1"}, "#1", false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEST-1"}, outcome.Modified)

	// Already a member: unchanged.
	records, _ = s.List()
	outcome, err = AssignTasks(ts, s, records, []string{"TEST-1"}, "#1", false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEST-1"}, outcome.Unchanged)

	// Plain assign to sprint 2 keeps both memberships.
	records, _ = s.List()
	outcome, err = AssignTasks(ts, s, records, []string{"TEST-1"}, "#2", false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEST-1"}, outcome.Modified)
	loaded, err := ts.Get("TEST-1", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, loaded.Sprints)

	// Remove from 2, then force-single into 2: replaced records previous.
	records, _ = s.List()
	_, err = RemoveTasks(ts, s, records, []string{"TEST-1"}, "#2")
	require.NoError(t, err)

	records, _ = s.List()
	outcome, err = AssignTasks(ts, s, records, []string{"TEST-1"}, "#2", false, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"TEST-1"}, outcome.Modified)
	require.Len(t, outcome.Replaced, 1)
	assert.Equal(t, "TEST-1", outcome.Replaced[0].TaskID)
	assert.Equal(t, []int{1}, outcome.Replaced[0].Previous)

	loaded, err = ts.Get("TEST-1", "")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, loaded.Sprints)

	records, _ = s.List()
	var one, two *Record
	for _, r := range records {
		if r.ID == 1 {
			one = r
		}
		if r.ID == 2 {
			two = r
		}
	}
	assert.False(t, one.Sprint.HasTask("TEST-1"))
	assert.True(t, two.Sprint.HasTask("TEST-1"))
}

func TestAssignRejectsClosedWithoutForce(t *testing.T) {
	ts, s := testStores(t)
	_, err := ts.Create(task.CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)
	mustCreate(t, s, &Sprint{
		Plan: Plan{Label: "closed"},
		Actual: &Actual{
			StartedAt: task.Now(),
			ClosedAt:  task.Now(),
		},
	})

	records, _ := s.List()
	_, err = AssignTasks(ts, s, records, []string{"TEST-1"}, "#1", false, false)
	require.Error(t, err)

	_, err = AssignTasks(ts, s, records, []string{"TEST-1"}, "#1", true, false)
	require.NoError(t, err)
}

func TestAssignInfersSingleActiveSprint(t *testing.T) {
	ts, s := testStores(t)
	_, err := ts.Create(task.CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)
	mustCreate(t, s, &Sprint{
		Plan:   Plan{Label: "running", Length: "4w"},
		Actual: &Actual{StartedAt: task.Now()},
	})

	records, _ := s.List()
	outcome, err := AssignTasks(ts, s, records, []string{"TEST-1"}, "", false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.SprintID)
}

func TestIntegrityDetectAndCleanup(t *testing.T) {
	ts, s := testStores(t)
	created, err := ts.Create(task.CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)
	mustCreate(t, s, &Sprint{Plan: Plan{Label: "kept"}})

	// Point the task at both an existing and a missing sprint.
	created.Sprints = []int{1, 7}
	require.NoError(t, ts.Save(created))

	records, _ := s.List()
	report, err := DetectMissing(ts, records)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, report.MissingSprints)
	assert.Equal(t, 1, report.TasksWithMissing)

	outcome, err := Cleanup(ts, records, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.UpdatedTasks)
	assert.Equal(t, 1, outcome.RemovedReferences)
	require.Len(t, outcome.RemovedBySprint, 1)
	assert.Equal(t, 7, outcome.RemovedBySprint[0].SprintID)
	assert.Empty(t, outcome.RemainingMissing)

	// Idempotent: second pass reports nothing.
	outcome, err = Cleanup(ts, records, 0)
	require.NoError(t, err)
	assert.Zero(t, outcome.UpdatedTasks)
	assert.Zero(t, outcome.RemovedReferences)

	loaded, err := ts.Get("TEST-1", "")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, loaded.Sprints)
}

func TestCleanupTargeted(t *testing.T) {
	ts, s := testStores(t)
	created, err := ts.Create(task.CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)
	created.Sprints = []int{7, 9}
	require.NoError(t, ts.Save(created))

	records, _ := s.List()
	outcome, err := Cleanup(ts, records, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.RemovedReferences)
	assert.Equal(t, []int{9}, outcome.RemainingMissing)

	loaded, err := ts.Get("TEST-1", "")
	require.NoError(t, err)
	assert.Equal(t, []int{9}, loaded.Sprints)
}

func TestFetchBacklog(t *testing.T) {
	ts, s := testStores(t)
	_, err := ts.Create(task.CreateRequest{Project: "TEST", Title: "Free", Tags: []string{"backend"}})
	require.NoError(t, err)
	assigned, err := ts.Create(task.CreateRequest{Project: "TEST", Title: "Busy"})
	require.NoError(t, err)
	dangling, err := ts.Create(task.CreateRequest{Project: "TEST", Title: "Dangling"})
	require.NoError(t, err)

	mustCreate(t, s, &Sprint{Plan: Plan{Label: "one"}})
	records, _ := s.List()
	_, err = AssignTasks(ts, s, records, []string{assigned.ID}, "#1", false, false)
	require.NoError(t, err)

	// A reference to a sprint that does not exist must not hide the task.
	dangling.Sprints = []int{42}
	require.NoError(t, ts.Save(dangling))

	records, _ = s.List()
	backlog, err := FetchBacklog(ts, records, BacklogOptions{Project: "TEST"})
	require.NoError(t, err)
	ids := make([]string, 0, len(backlog))
	for _, t := range backlog {
		ids = append(ids, t.ID)
	}
	assert.ElementsMatch(t, []string{"TEST-1", "TEST-3"}, ids)

	backlog, err = FetchBacklog(ts, records, BacklogOptions{Project: "TEST", Tags: []string{"back"}})
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, "TEST-1", backlog[0].ID)
}

func TestResolveSprintRefAndLikely(t *testing.T) {
	_, s := testStores(t)
	mustCreate(t, s, &Sprint{Plan: Plan{Label: "Iteration One"}})
	records, _ := s.List()

	byHash, err := ResolveSprintRef(records, "#1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, byHash.ID)

	byNum, err := ResolveSprintRef(records, "1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, byNum.ID)

	byLabel, err := ResolveSprintRef(records, "iteration one", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, byLabel.ID)

	_, err = ResolveSprintRef(records, "", time.Now())
	require.Error(t, err) // nothing active

	assert.True(t, LikelySprintReference(records, "#1"))
	assert.True(t, LikelySprintReference(records, "3"))
	assert.True(t, LikelySprintReference(records, "Iteration One"))
	assert.False(t, LikelySprintReference(records, "TEST-1"))
	assert.False(t, LikelySprintReference(records, "unrelated"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "roadmap", DisplayName(&Record{ID: 3, Sprint: &Sprint{Plan: Plan{Label: "roadmap"}}}))
	assert.Equal(t, "Sprint 3", DisplayName(&Record{ID: 3, Sprint: &Sprint{}}))
}
