package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localtaskrepo/lotar/pkg/workspace"
)

func testWorkspace(t *testing.T) workspace.Workspace {
	t.Helper()
	t.Setenv("LOTAR_HOME_CONFIG", filepath.Join(t.TempDir(), "absent.yml"))
	t.Setenv("LOTAR_PORT", "")
	t.Setenv("LOTAR_PROJECT", "")
	t.Setenv("LOTAR_DEFAULT_ASSIGNEE", "")
	t.Setenv("LOTAR_DEFAULT_REPORTER", "")
	return workspace.New(t.TempDir())
}

func TestLoadAndMergeDefaults(t *testing.T) {
	ws := testWorkspace(t)

	resolved, err := LoadAndMerge(ws)
	require.NoError(t, err)
	assert.Equal(t, 8080, resolved.ServerPort)
	assert.Equal(t, "Medium", resolved.DefaultPriority)
	assert.Equal(t, []string{"Todo", "InProgress", "Done"}, resolved.IssueStates)
	assert.Equal(t, SourceDefault, resolved.Provenance["server.port"])
}

func TestLoadAndMergeGlobalOverride(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, os.MkdirAll(ws.Root(), 0o755))
	global := "server:\n  port: 9999\ndefault:\n  priority: High\n"
	require.NoError(t, os.WriteFile(ws.GlobalConfigPath(), []byte(global), 0o644))

	resolved, err := LoadAndMerge(ws)
	require.NoError(t, err)
	assert.Equal(t, 9999, resolved.ServerPort)
	assert.Equal(t, "High", resolved.DefaultPriority)
	assert.Equal(t, SourceGlobal, resolved.Provenance["server.port"])
	assert.Equal(t, SourceGlobal, resolved.Provenance["default.priority"])
	assert.Equal(t, SourceDefault, resolved.Provenance["issue.states"])
}

func TestLoadAndMergeEnvWins(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, os.MkdirAll(ws.Root(), 0o755))
	require.NoError(t, os.WriteFile(ws.GlobalConfigPath(), []byte("server:\n  port: 9999\n"), 0o644))
	t.Setenv("LOTAR_PORT", "7777")
	t.Setenv("LOTAR_DEFAULT_REPORTER", "alice@example.com")

	resolved, err := LoadAndMerge(ws)
	require.NoError(t, err)
	assert.Equal(t, 7777, resolved.ServerPort)
	assert.Equal(t, "alice@example.com", resolved.DefaultReporter)
	assert.Equal(t, SourceEnv, resolved.Provenance["server.port"])
	assert.Equal(t, SourceEnv, resolved.Provenance["default.reporter"])
}

func TestLoadAndMergeEnvProjectGeneratesPrefix(t *testing.T) {
	ws := testWorkspace(t)
	t.Setenv("LOTAR_PROJECT", "my-cool-project")

	resolved, err := LoadAndMerge(ws)
	require.NoError(t, err)
	assert.Equal(t, "my-cool-project", resolved.DefaultProject)
	assert.Equal(t, "MCP", resolved.DefaultPrefix)
}

func TestGetProjectConfigOverridesVocabulary(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, os.MkdirAll(ws.Root(), 0o755))
	require.NoError(t, os.WriteFile(ws.GlobalConfigPath(), []byte("issue:\n  states: [Open, Closed]\nserver:\n  port: 9000\n"), 0o644))
	require.NoError(t, ws.EnsureProjectDir("TEST"))
	projectCfg := "issue:\n  states: [New, Active, Resolved]\nproject:\n  name: Test Project\ndefault:\n  status: Active\n"
	require.NoError(t, os.WriteFile(ws.ProjectConfigPath("TEST"), []byte(projectCfg), 0o644))

	resolved, err := GetProjectConfig(ws, "TEST")
	require.NoError(t, err)
	assert.Equal(t, []string{"New", "Active", "Resolved"}, resolved.IssueStates)
	assert.Equal(t, "Test Project", resolved.ProjectName)
	assert.Equal(t, "Active", resolved.DefaultStatus)
	// Workspace-only fields keep the global value.
	assert.Equal(t, 9000, resolved.ServerPort)
	assert.Equal(t, SourceProject, resolved.Provenance["issue.states"])
	assert.Equal(t, SourceGlobal, resolved.Provenance["server.port"])
}

func TestDottedKeyExpansion(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, os.MkdirAll(ws.Root(), 0o755))
	require.NoError(t, os.WriteFile(ws.GlobalConfigPath(), []byte("default.project: backend\nserver.port: 9001\n"), 0o644))

	resolved, err := LoadAndMerge(ws)
	require.NoError(t, err)
	assert.Equal(t, "backend", resolved.DefaultProject)
	assert.Equal(t, 9001, resolved.ServerPort)
}

func TestUpdateFieldRoundTrip(t *testing.T) {
	ws := testWorkspace(t)

	require.NoError(t, UpdateField(ws, "server_port", "9005", ""))
	require.NoError(t, UpdateField(ws, "default.priority", "High", ""))

	resolved, err := LoadAndMerge(ws)
	require.NoError(t, err)
	assert.Equal(t, 9005, resolved.ServerPort)
	assert.Equal(t, "High", resolved.DefaultPriority)
}

func TestUpdateFieldUnknownSuggests(t *testing.T) {
	ws := testWorkspace(t)

	err := UpdateField(ws, "server.prot", "9005", "")
	require.Error(t, err)
	uerr, ok := err.(*UnknownFieldError)
	require.True(t, ok)
	assert.Equal(t, "server.port", uerr.Suggestion)
}

func TestUpdateFieldScopeWhitelist(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, ws.EnsureProjectDir("TEST"))

	err := UpdateField(ws, "server_port", "9005", "TEST")
	require.Error(t, err)
	_, ok := err.(*UnknownFieldError)
	assert.True(t, ok)

	require.NoError(t, UpdateField(ws, "project_name", "Test Project", "TEST"))
	resolved, err := GetProjectConfig(ws, "TEST")
	require.NoError(t, err)
	assert.Equal(t, "Test Project", resolved.ProjectName)
}

func TestUpdateFieldInvalidValue(t *testing.T) {
	ws := testWorkspace(t)

	err := UpdateField(ws, "server_port", "not-a-port", "")
	require.Error(t, err)
	_, ok := err.(*InvalidValueError)
	assert.True(t, ok)
}

func TestCanonicalizeOmitsUnset(t *testing.T) {
	port := 9999
	data, err := Canonicalize(&fileConfig{Server: &serverSection{Port: &port}})
	require.NoError(t, err)
	assert.Contains(t, string(data), "server:")
	assert.Contains(t, string(data), "port: 9999")
	assert.NotContains(t, string(data), "issue:")
	assert.NotContains(t, string(data), "default:")
}

func TestCanonicalizeIdempotent(t *testing.T) {
	ws := testWorkspace(t)
	require.NoError(t, UpdateField(ws, "issue_states", "Open,Closed", ""))

	first, err := os.ReadFile(ws.GlobalConfigPath())
	require.NoError(t, err)

	// Re-writing the same field with the same value must re-emit the original byte-identically.
	require.NoError(t, UpdateField(ws, "issue_states", "Open,Closed", ""))
	second, err := os.ReadFile(ws.GlobalConfigPath())
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestDoneStatuses(t *testing.T) {
	cfg := defaultConfig()
	assert.True(t, cfg.IsDone("Done"))
	assert.True(t, cfg.IsDone("done"))
	assert.False(t, cfg.IsDone("Todo"))

	cfg.IssueStates = []string{"Open", "Fixed", "Closed"}
	assert.True(t, cfg.IsDone("Closed"))
	assert.False(t, cfg.IsDone("Fixed"))
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))
	problems, err := ValidateFile(path)
	require.NoError(t, err)
	assert.Empty(t, problems)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  prot: 8080\n"), 0o644))
	problems, err = ValidateFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, problems)

	// The unknown key comes back with the nearest accepted key suggested.
	joined := strings.Join(problems, "\n")
	assert.Contains(t, joined, "prot")
	assert.Contains(t, joined, `"port"`)
}

func TestTemplates(t *testing.T) {
	for _, name := range TemplateNames {
		assert.NotNil(t, Template(name), name)
	}
	assert.Nil(t, Template("nope"))

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, InitWorkspace(path, "agile", false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Backlog")

	err = InitWorkspace(path, "agile", false)
	require.Error(t, err)
	require.NoError(t, InitWorkspace(path, "kanban", true))
}

func TestResolveBranchAlias(t *testing.T) {
	aliases := map[string]string{"wip": "InProgress", "Done-Like": "Done"}
	got, ok := ResolveBranchAlias(aliases, "WIP")
	assert.True(t, ok)
	assert.Equal(t, "InProgress", got)

	got, ok = ResolveBranchAlias(aliases, "done_like")
	assert.True(t, ok)
	assert.Equal(t, "Done", got)

	_, ok = ResolveBranchAlias(aliases, "missing")
	assert.False(t, ok)
}
