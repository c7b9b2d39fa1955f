package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localtaskrepo/lotar/pkg/workspace"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	t.Setenv("LOTAR_HOME_CONFIG", filepath.Join(t.TempDir(), "absent.yml"))
	t.Setenv("LOTAR_PORT", "")
	t.Setenv("LOTAR_PROJECT", "")
	t.Setenv("LOTAR_DEFAULT_ASSIGNEE", "")
	t.Setenv("LOTAR_DEFAULT_REPORTER", "tester")
	return NewStore(workspace.New(filepath.Join(t.TempDir(), ".tasks")))
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s := testStore(t)

	first, err := s.Create(CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)
	assert.Equal(t, "TEST-1", first.ID)

	second, err := s.Create(CreateRequest{Project: "TEST", Title: "B"})
	require.NoError(t, err)
	assert.Equal(t, "TEST-2", second.ID)
}

func TestCreateAppliesDefaults(t *testing.T) {
	s := testStore(t)

	created, err := s.Create(CreateRequest{Project: "TEST", Title: "A", Priority: "high"})
	require.NoError(t, err)
	assert.Equal(t, "High", created.Priority)
	assert.Equal(t, "Todo", created.Status)
	assert.Equal(t, "Feature", created.TaskType)
	assert.Equal(t, "tester", created.Reporter)
	assert.False(t, created.Created.IsZero())
	require.Len(t, created.History, 1)
	assert.Equal(t, "created", created.History[0].Changes[0].Field)
}

func TestCreateRejectsBadEnum(t *testing.T) {
	s := testStore(t)

	_, err := s.Create(CreateRequest{Project: "TEST", Title: "A", Priority: "urgentest"})
	require.Error(t, err)
}

func TestGetRoundTrip(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(CreateRequest{Project: "TEST", Title: "A", Tags: []string{"backend"}})
	require.NoError(t, err)

	loaded, err := s.Get(created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, "A", loaded.Title)
	assert.Equal(t, []string{"backend"}, loaded.Tags)
	assert.Equal(t, created.Created, loaded.Created)
}

func TestGetByNumberWithProject(t *testing.T) {
	s := testStore(t)
	_, err := s.Create(CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)

	loaded, err := s.Get("1", "TEST")
	require.NoError(t, err)
	assert.Equal(t, "TEST-1", loaded.ID)
}

func TestGetNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get("TEST-99", "")
	require.Error(t, err)
	_, ok := err.(*NotFoundError)
	assert.True(t, ok)
}

func TestCanonicalWriteIdempotent(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(CreateRequest{Project: "TEST", Title: "A", Tags: []string{"x"}})
	require.NoError(t, err)

	path := s.Workspace().TaskFilePath("TEST", 1)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := s.Get(created.ID, "")
	require.NoError(t, err)
	loaded.Modified = created.Modified
	require.NoError(t, s.write(loaded))

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestUnknownKeysSurviveRewrite(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)

	path := s.Workspace().TaskFilePath("TEST", 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte("my_note: keep me\n")...), 0o644))

	_, err = s.SetStatus(created.ID, "", "Done", "tester")
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(after), "my_note: keep me")
}

func TestUpdateRecordsHistory(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)

	title := "B"
	status := "done"
	updated, err := s.Update(created.ID, "", Patch{Title: &title, Status: &status, Actor: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Title)
	assert.Equal(t, "Done", updated.Status)

	last := updated.History[len(updated.History)-1]
	assert.Equal(t, "alice", last.Actor)
	require.Len(t, last.Changes, 2)
	assert.Equal(t, "title", last.Changes[0].Field)
	assert.Equal(t, "status", last.Changes[1].Field)
	assert.Equal(t, "Todo", last.Changes[1].Old)
	assert.Equal(t, "Done", last.Changes[1].New)
}

func TestUpdateNoChangesNoHistory(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)

	same := "A"
	updated, err := s.Update(created.ID, "", Patch{Title: &same})
	require.NoError(t, err)
	assert.Len(t, updated.History, 1)
}

func TestCommentsKeepStableIndexes(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)

	_, idx0, err := s.AddComment(created.ID, "", "alice", "first")
	require.NoError(t, err)
	assert.Equal(t, 0, idx0)
	_, idx1, err := s.AddComment(created.ID, "", "bob", "second")
	require.NoError(t, err)
	assert.Equal(t, 1, idx1)

	updated, err := s.UpdateComment(created.ID, "", 0, "first, edited", "alice")
	require.NoError(t, err)
	assert.Equal(t, "first, edited", updated.Comments[0].Text)
	assert.Equal(t, "second", updated.Comments[1].Text)

	last := updated.History[len(updated.History)-1]
	assert.Equal(t, "comment#0", last.Changes[0].Field)
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	created, err := s.Create(CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)

	removed, err := s.Delete(created.ID, "")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(created.ID, "")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSearchAcrossProjects(t *testing.T) {
	s := testStore(t)
	_, err := s.Create(CreateRequest{Project: "TEST", Title: "A"})
	require.NoError(t, err)
	_, err = s.Create(CreateRequest{Project: "OTHER", Title: "B"})
	require.NoError(t, err)

	all, err := s.Search("", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "OTHER-1", all[0].ID)
	assert.Equal(t, "TEST-1", all[1].ID)

	scoped, err := s.Search("TEST", nil)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
}

func TestTolerantLoad(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Workspace().EnsureProjectDir("TEST"))
	// created is not a valid timestamp: strict decode fails, tolerant wins.
	broken := "id: TEST-1\ntitle: Rescued\nstatus: Todo\ncreated: [not, a, time]\n"
	require.NoError(t, os.WriteFile(s.Workspace().TaskFilePath("TEST", 1), []byte(broken), 0o644))

	loaded, err := s.Get("TEST-1", "")
	require.NoError(t, err)
	assert.Equal(t, "Rescued", loaded.Title)
	assert.Equal(t, "Todo", loaded.Status)
}

func TestParseID(t *testing.T) {
	prefix, number, ok := ParseID("TEST-12")
	assert.True(t, ok)
	assert.Equal(t, "TEST", prefix)
	assert.Equal(t, 12, number)

	prefix, number, ok = ParseID("MY-PROJ-3")
	assert.True(t, ok)
	assert.Equal(t, "MY-PROJ", prefix)
	assert.Equal(t, 3, number)

	for _, bad := range []string{"", "TEST", "TEST-", "-1", "TEST-0", "TEST-x"} {
		_, _, ok := ParseID(bad)
		assert.False(t, ok, bad)
	}
}

func TestCreateRejectsPrefixCollidingWithProjectName(t *testing.T) {
	s := testStore(t)
	_, err := s.Create(CreateRequest{Project: "WEB", Title: "A"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Workspace().ProjectConfigPath("WEB"), []byte("project:\n  name: API\n"), 0o644))

	// A new project directory may not take another project's name.
	_, err = s.Create(CreateRequest{Project: "API", Title: "B"})
	require.Error(t, err)

	// The existing project itself is untouched by the guard.
	_, err = s.Create(CreateRequest{Project: "WEB", Title: "C"})
	require.NoError(t, err)
}
