package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrecedence(t *testing.T) {
	res := Resolve("/explicit/.tasks", "/env/.tasks")
	assert.Equal(t, SourceFlag, res.Source)
	assert.Equal(t, "/explicit/.tasks", res.Path)

	res = Resolve("", "/env/.tasks")
	assert.Equal(t, SourceEnv, res.Source)
}

func TestResolveDiscovery(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".tasks"), 0o755))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.Chdir(nested))

	res := Resolve("", "")
	assert.Equal(t, SourceDiscovered, res.Source)
	// Resolve may report the path through a symlinked temp dir; compare suffix.
	assert.Equal(t, ".tasks", filepath.Base(res.Path))
}

func TestResolveDefault(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.Chdir(dir))

	res := Resolve("", "")
	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, ".tasks", filepath.Base(res.Path))
}

func TestDerivedPaths(t *testing.T) {
	w := New("/ws/.tasks")
	assert.Equal(t, "/ws/.tasks/config.yml", w.GlobalConfigPath())
	assert.Equal(t, "/ws/.tasks/TEST", w.ProjectDir("TEST"))
	assert.Equal(t, "/ws/.tasks/TEST/config.yml", w.ProjectConfigPath("TEST"))
	assert.Equal(t, "/ws/.tasks/TEST/3.yml", w.TaskFilePath("TEST", 3))
	assert.Equal(t, "/ws/.tasks/@sprints", w.SprintsDir())
	assert.Equal(t, "/ws/.tasks/@sprints/2.yml", w.SprintFilePath(2))
}

func TestGeneratePrefix(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"api", "API"},
		{"TEST", "TEST"},
		{"my-cool-project", "MCP"},
		{"one_two_three_four_five", "OTTF"},
		{"backend", "BACK"},
		{".hidden", "HIDD"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GeneratePrefix(tt.name), tt.name)
	}
}

func TestGeneratePrefixGrammar(t *testing.T) {
	for _, name := range []string{"api", "my-cool-project", "backend service tooling", "x"} {
		got := GeneratePrefix(name)
		require.True(t, ValidPrefix(got), "GeneratePrefix(%q) = %q", name, got)
	}
}

func TestValidPrefix(t *testing.T) {
	assert.True(t, ValidPrefix("TEST"))
	assert.True(t, ValidPrefix("A_B-2"))
	assert.False(t, ValidPrefix(""))
	assert.False(t, ValidPrefix("lower"))
	assert.False(t, ValidPrefix(".DOT"))
	assert.False(t, ValidPrefix("THISPREFIXISWAYTOOLONGFORUS"))
}

func TestListProjects(t *testing.T) {
	root := t.TempDir()
	w := New(root)
	require.NoError(t, w.EnsureProjectDir("TEST"))
	require.NoError(t, w.EnsureSprintsDir())
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yml"), []byte("{}\n"), 0o644))

	projects, err := w.ListProjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"TEST"}, projects)
}

func writeProjectName(t *testing.T, w Workspace, prefix, name string) {
	t.Helper()
	require.NoError(t, w.EnsureProjectDir(prefix))
	content := "project:\n  name: " + name + "\n"
	require.NoError(t, os.WriteFile(w.ProjectConfigPath(prefix), []byte(content), 0o644))
}

func TestGenerateUniquePrefixNoConflicts(t *testing.T) {
	w := New(t.TempDir())

	got, err := w.GenerateUniquePrefix("frontend")
	require.NoError(t, err)
	assert.Equal(t, "FRON", got)

	got, err = w.GenerateUniquePrefix("api-backend")
	require.NoError(t, err)
	assert.Equal(t, "AB", got)
}

func TestGenerateUniquePrefixRejectsNameMatchingExistingPrefix(t *testing.T) {
	w := New(t.TempDir())
	require.NoError(t, w.EnsureProjectDir("BACK"))

	_, err := w.GenerateUniquePrefix("BACK")
	require.Error(t, err)
	_, ok := err.(*ConflictError)
	assert.True(t, ok)
}

func TestGenerateUniquePrefixRejectsPrefixMatchingProjectName(t *testing.T) {
	w := New(t.TempDir())
	writeProjectName(t, w, "XY", "BACK")

	// "backend" generates BACK, which is another project's name.
	_, err := w.GenerateUniquePrefix("backend")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACK")
}

func TestGenerateUniquePrefixCollisionSuggestsAlternatives(t *testing.T) {
	w := New(t.TempDir())
	writeProjectName(t, w, "MCP", "my-cool-project")

	// A different name collapsing to the same prefix must not reuse the
	// directory silently.
	_, err := w.GenerateUniquePrefix("mortal-combat-plan")
	require.Error(t, err)
	conflict, ok := err.(*ConflictError)
	require.True(t, ok)
	assert.Contains(t, conflict.Message, "my-cool-project")
	assert.Contains(t, conflict.Alternatives, "MCP1")

	// The same name keeps resolving to its own prefix.
	got, err := w.GenerateUniquePrefix("my-cool-project")
	require.NoError(t, err)
	assert.Equal(t, "MCP", got)
}

func TestGenerateUniquePrefixNeverEqualsExistingProjectName(t *testing.T) {
	w := New(t.TempDir())
	writeProjectName(t, w, "AA", "FRON")
	writeProjectName(t, w, "BB", "TPT")

	for _, name := range []string{"frontend", "two-phase-thing", "other"} {
		got, err := w.GenerateUniquePrefix(name)
		if err != nil {
			continue
		}
		for _, existing := range []string{"FRON", "TPT"} {
			assert.NotEqual(t, existing, got, name)
		}
	}
}

func TestValidateNewPrefix(t *testing.T) {
	w := New(t.TempDir())
	writeProjectName(t, w, "WEB", "website")

	assert.NoError(t, w.ValidateNewPrefix("API"))
	assert.Error(t, w.ValidateNewPrefix("WEBSITE"))
}

func TestResolveProjectInput(t *testing.T) {
	w := New(t.TempDir())
	writeProjectName(t, w, "MCP", "my-cool-project")

	// Existing directory wins.
	assert.Equal(t, "MCP", w.ResolveProjectInput("MCP"))
	// Project name maps to its prefix.
	assert.Equal(t, "MCP", w.ResolveProjectInput("my-cool-project"))
	// A name generating an existing prefix maps there too.
	assert.Equal(t, "MCP", w.ResolveProjectInput("my_cool_project"))
	// Anything else falls back to the generated prefix.
	assert.Equal(t, "NEW", w.ResolveProjectInput("new"))
}

func TestResolveProjectForCreate(t *testing.T) {
	w := New(t.TempDir())
	writeProjectName(t, w, "MCP", "my-cool-project")

	got, err := w.ResolveProjectForCreate("my-cool-project")
	require.NoError(t, err)
	assert.Equal(t, "MCP", got)

	_, err = w.ResolveProjectForCreate("mortal-combat-plan")
	require.Error(t, err)
}
