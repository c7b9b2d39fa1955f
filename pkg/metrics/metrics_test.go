package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
)

func testConfig() *config.Config {
	return &config.Config{
		IssueStates:     []string{"Todo", "InProgress", "Done"},
		IssuePriorities: []string{"Low", "Medium", "High"},
	}
}

func doneTask(id, effort string, doneAt time.Time) *task.Task {
	return &task.Task{
		ID:     id,
		Status: "Done",
		Effort: effort,
		History: []task.HistoryEntry{{
			Date:    task.At(doneAt),
			Changes: []task.HistoryChange{{Field: "status", Old: "Todo", New: "Done"}},
		}},
		Modified: task.At(doneAt),
	}
}

func openTask(id, effort string) *task.Task {
	return &task.Task{ID: id, Status: "Todo", Effort: effort}
}

func TestParseEffort(t *testing.T) {
	e, ok := ParseEffort("5")
	require.True(t, ok)
	assert.Equal(t, 5.0, e.Points)

	e, ok = ParseEffort("5h")
	require.True(t, ok)
	assert.Equal(t, 5.0, e.Hours)

	e, ok = ParseEffort("2d")
	require.True(t, ok)
	assert.Equal(t, 16.0, e.Hours)

	e, ok = ParseEffort("1w")
	require.True(t, ok)
	assert.Equal(t, 40.0, e.Hours)

	for _, bad := range []string{"", "x", "-3", "3x"} {
		_, ok := ParseEffort(bad)
		assert.False(t, ok, bad)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2030, 6, 10, 0, 0, 0, 0, time.UTC)
	record := &sprint.Record{ID: 1, Sprint: &sprint.Sprint{
		Plan:   sprint.Plan{Label: "S1", Length: "2w", Capacity: &sprint.Capacity{Points: 20}},
		Actual: &sprint.Actual{StartedAt: task.At(now.Add(-48 * time.Hour))},
	}}
	blocked := openTask("T-3", "3")
	blocked.Relationships = &task.Relationships{BlockedBy: []string{"T-1"}}
	members := []*task.Task{
		doneTask("T-1", "5", now.Add(-24*time.Hour)),
		openTask("T-2", "2"),
		blocked,
	}

	s := Summarize(record, members, testConfig(), now)
	assert.Equal(t, 3, s.Committed)
	assert.Equal(t, 1, s.Done)
	assert.Equal(t, 2, s.Remaining)
	assert.InDelta(t, 1.0/3.0, s.CompletionRatio, 1e-9)
	require.NotNil(t, s.Points)
	assert.Equal(t, 10.0, s.Points.Committed)
	assert.Equal(t, 5.0, s.Points.Completed)
	assert.Equal(t, 20.0, s.Points.Capacity)
	assert.Nil(t, s.Hours)
	assert.Equal(t, []string{"T-3"}, s.Blocked)
	require.Len(t, s.StatusBreakdown, 2)
	assert.Equal(t, "Todo", s.StatusBreakdown[0].Status)
	assert.Equal(t, 2, s.StatusBreakdown[0].Count)
}

func TestReviewListsOpenWork(t *testing.T) {
	now := time.Now()
	record := &sprint.Record{ID: 1, Sprint: &sprint.Sprint{Plan: sprint.Plan{Label: "S1"}}}
	open := openTask("T-2", "")
	open.Title = "Open item"
	open.Assignee = "alice"
	members := []*task.Task{doneTask("T-1", "", now), open}

	review := Reviewed(record, members, testConfig(), now)
	require.Len(t, review.Open, 1)
	assert.Equal(t, "T-2", review.Open[0].ID)
	assert.Equal(t, "alice", review.Open[0].Assignee)
}

func TestBurndownFallsBackWithoutPoints(t *testing.T) {
	now := time.Date(2030, 6, 5, 12, 0, 0, 0, time.UTC)
	record := &sprint.Record{ID: 1, Sprint: &sprint.Sprint{
		Plan:   sprint.Plan{Length: "1w"},
		Actual: &sprint.Actual{StartedAt: task.At(now.Add(-72 * time.Hour))},
	}}
	members := []*task.Task{openTask("T-1", ""), openTask("T-2", "")}

	b := ComputeBurndown(record, members, testConfig(), MetricPoints, now)
	assert.Equal(t, MetricTasks, b.Metric)
	assert.Equal(t, 0.0, b.Totals.Points)
	require.NotEmpty(t, b.Warnings)
	assert.Equal(t, "metric_unavailable", b.Warnings[len(b.Warnings)-1].Code)
	assert.NotEmpty(t, b.Series)
}

func TestBurndownSeries(t *testing.T) {
	start := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(3 * 24 * time.Hour)
	record := &sprint.Record{ID: 1, Sprint: &sprint.Sprint{
		Plan:   sprint.Plan{Length: "1w"},
		Actual: &sprint.Actual{StartedAt: task.At(start)},
	}}
	members := []*task.Task{
		doneTask("T-1", "5", start.Add(36*time.Hour)),
		openTask("T-2", "3"),
	}

	b := ComputeBurndown(record, members, testConfig(), MetricPoints, now)
	assert.Equal(t, MetricPoints, b.Metric)
	assert.Equal(t, 8.0, b.Totals.Points)
	require.Len(t, b.Series, 4)

	// Day one: nothing burned yet.
	assert.Equal(t, 2, b.Series[0].RemainingTasks)
	require.NotNil(t, b.Series[0].RemainingPoints)
	assert.Equal(t, 8.0, *b.Series[0].RemainingPoints)
	// Ideal starts at the committed total.
	assert.Equal(t, 8.0, *b.Series[0].IdealPoints)

	// After the done transition only T-2 remains.
	assert.Equal(t, 1, b.Series[2].RemainingTasks)
	assert.Equal(t, 3.0, *b.Series[2].RemainingPoints)

	// Ideal declines monotonically.
	for i := 1; i < len(b.Series); i++ {
		assert.LessOrEqual(t, *b.Series[i].IdealPoints, *b.Series[i-1].IdealPoints)
	}
}

func TestBurndownPure(t *testing.T) {
	start := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(2 * 24 * time.Hour)
	record := &sprint.Record{ID: 1, Sprint: &sprint.Sprint{
		Plan:   sprint.Plan{Length: "1w"},
		Actual: &sprint.Actual{StartedAt: task.At(start)},
	}}
	members := []*task.Task{openTask("T-1", "2")}

	first := ComputeBurndown(record, members, testConfig(), MetricPoints, now)
	second := ComputeBurndown(record, members, testConfig(), MetricPoints, now)
	assert.Equal(t, first, second)
}

func closedRecord(id int, label string, closedAt time.Time) *sprint.Record {
	return &sprint.Record{ID: id, Sprint: &sprint.Sprint{
		Plan: sprint.Plan{Label: label, Length: "1w"},
		Actual: &sprint.Actual{
			StartedAt: task.At(closedAt.Add(-7 * 24 * time.Hour)),
			ClosedAt:  task.At(closedAt),
		},
	}}
}

func TestVelocity(t *testing.T) {
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []*sprint.Record{
		closedRecord(1, "one", now.Add(-21*24*time.Hour)),
		closedRecord(2, "two", now.Add(-14*24*time.Hour)),
		{ID: 3, Sprint: &sprint.Sprint{
			Plan:   sprint.Plan{Label: "running", Length: "1w"},
			Actual: &sprint.Actual{StartedAt: task.At(now.Add(-24 * time.Hour))},
		}},
	}
	memberSets := map[int][]*task.Task{
		1: {doneTask("T-1", "5", now.Add(-22*24*time.Hour)), openTask("T-2", "3")},
		2: {doneTask("T-3", "8", now.Add(-15*24*time.Hour))},
		3: {openTask("T-4", "2")},
	}
	membersOf := func(r *sprint.Record) []*task.Task { return memberSets[r.ID] }

	v := ComputeVelocity(records, membersOf, testConfig(), MetricPoints, 6, false, now)
	require.Len(t, v.Entries, 2) // active sprint skipped
	assert.Equal(t, 1, v.Entries[0].SprintID)
	assert.Equal(t, 8.0, v.Entries[0].Committed)
	assert.Equal(t, 5.0, v.Entries[0].Completed)
	assert.Equal(t, "", v.Entries[0].Direction)
	assert.Equal(t, 2, v.Entries[1].SprintID)
	assert.Equal(t, "up", v.Entries[1].Direction)
	assert.InDelta(t, 6.5, v.AverageCompleted, 1e-9)

	v = ComputeVelocity(records, membersOf, testConfig(), MetricPoints, 6, true, now)
	assert.Len(t, v.Entries, 3)

	v = ComputeVelocity(records, membersOf, testConfig(), MetricPoints, 1, false, now)
	require.Len(t, v.Entries, 1)
	assert.Equal(t, 2, v.Entries[0].SprintID)
}
