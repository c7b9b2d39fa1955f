// Package workspace locates the .tasks directory and derives every path the
// stores read or write. All path functions are pure; directories are only
// created by explicit Ensure* calls on write operations.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/localtaskrepo/lotar/pkg/constants"
	"github.com/localtaskrepo/lotar/pkg/logger"
)

var log = logger.New("workspace:resolver")

// Source records where the tasks directory path came from.
type Source string

const (
	SourceFlag       Source = "flag"
	SourceEnv        Source = "env"
	SourceDiscovered Source = "discovered"
	SourceDefault    Source = "default"
)

// Resolution is the outcome of locating the tasks directory.
type Resolution struct {
	Path   string
	Source Source
}

// Resolve maps an explicit flag value and the LOTAR_TASKS_DIR environment
// value to the tasks directory. Precedence: flag > env > upward discovery
// from the working directory > <cwd>/.tasks.
func Resolve(explicit, env string) Resolution {
	if explicit != "" {
		return Resolution{Path: explicit, Source: SourceFlag}
	}
	if env != "" {
		return Resolution{Path: env, Source: SourceEnv}
	}

	cwd, err := os.Getwd()
	if err != nil {
		log.Printf("getwd failed: %v", err)
		return Resolution{Path: constants.TasksDirName, Source: SourceDefault}
	}

	if found := discover(cwd); found != "" {
		return Resolution{Path: found, Source: SourceDiscovered}
	}

	return Resolution{Path: filepath.Join(cwd, constants.TasksDirName), Source: SourceDefault}
}

// discover walks upward from dir looking for an existing .tasks directory.
func discover(dir string) string {
	for {
		candidate := filepath.Join(dir, constants.TasksDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			log.Printf("discovered tasks dir at %s", candidate)
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Workspace wraps the tasks directory root. It is cheap to copy; every
// accessor derives paths without touching the filesystem.
type Workspace struct {
	root string
}

// New returns a Workspace rooted at the given tasks directory.
func New(root string) Workspace {
	return Workspace{root: root}
}

// Root returns the tasks directory path.
func (w Workspace) Root() string {
	return w.root
}

// GlobalConfigPath returns the workspace-global config file path.
func (w Workspace) GlobalConfigPath() string {
	return filepath.Join(w.root, constants.GlobalConfigFileName)
}

// ProjectDir returns the directory holding a project's task files.
func (w Workspace) ProjectDir(prefix string) string {
	return filepath.Join(w.root, prefix)
}

// ProjectConfigPath returns a project's config file path.
func (w Workspace) ProjectConfigPath(prefix string) string {
	return filepath.Join(w.root, prefix, constants.GlobalConfigFileName)
}

// TaskFilePath returns the YAML file path for a task number within a project.
func (w Workspace) TaskFilePath(prefix string, number int) string {
	return filepath.Join(w.root, prefix, strconv.Itoa(number)+".yml")
}

// SprintsDir returns the directory holding sprint files.
func (w Workspace) SprintsDir() string {
	return filepath.Join(w.root, constants.SprintsDirName)
}

// SprintFilePath returns the YAML file path for a sprint.
func (w Workspace) SprintFilePath(id int) string {
	return filepath.Join(w.root, constants.SprintsDirName, strconv.Itoa(id)+".yml")
}

// EnsureProjectDir creates a project directory (and the workspace root) if missing.
func (w Workspace) EnsureProjectDir(prefix string) error {
	return os.MkdirAll(w.ProjectDir(prefix), 0o755)
}

// EnsureSprintsDir creates the sprint directory (and the workspace root) if missing.
func (w Workspace) EnsureSprintsDir() error {
	return os.MkdirAll(w.SprintsDir(), 0o755)
}

// ListProjects returns the project prefixes that currently exist on disk,
// skipping the sprint folder and loose files.
func (w Workspace) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace: %w", err)
	}

	var prefixes []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == constants.SprintsDirName {
			continue
		}
		if ValidPrefix(entry.Name()) {
			prefixes = append(prefixes, entry.Name())
		}
	}
	return prefixes, nil
}
