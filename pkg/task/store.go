package task

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/sourcegraph/conc/pool"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/identity"
	"github.com/localtaskrepo/lotar/pkg/logger"
	"github.com/localtaskrepo/lotar/pkg/vocabulary"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

var log = logger.New("task:store")

// Store owns the task YAML files. It is cheap to copy: all state is the
// workspace handle.
type Store struct {
	ws workspace.Workspace
}

// NewStore creates a Store over the given workspace.
func NewStore(ws workspace.Workspace) *Store {
	return &Store{ws: ws}
}

// Workspace returns the underlying workspace handle.
func (s *Store) Workspace() workspace.Workspace {
	return s.ws
}

// CreateRequest carries the caller-supplied fields for a new task.
// Empty fields fall back to the resolved project configuration.
type CreateRequest struct {
	Project      string
	Title        string
	Subtitle     string
	Description  string
	Status       string
	Priority     string
	TaskType     string
	Reporter     string
	Assignee     string
	DueDate      string
	Effort       string
	Tags         []string
	CustomFields map[string]any
	Actor        string
}

// Create assigns the next ID in the project, applies configured defaults for
// everything the request left empty, validates the enum fields, writes the
// canonical file, and records the creation in history.
func (s *Store) Create(req CreateRequest) (*Task, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("task title must not be empty")
	}
	prefix := req.Project
	if !workspace.ValidPrefix(prefix) {
		return nil, fmt.Errorf("invalid project prefix %q", prefix)
	}

	cfg, err := config.GetProjectConfig(s.ws, prefix)
	if err != nil {
		return nil, err
	}

	t := &Task{
		Title:        req.Title,
		Subtitle:     req.Subtitle,
		Description:  req.Description,
		DueDate:      req.DueDate,
		Effort:       req.Effort,
		CustomFields: req.CustomFields,
	}

	status := req.Status
	if status == "" {
		status = cfg.DefaultStatus
	}
	if status == "" && len(cfg.IssueStates) > 0 {
		status = cfg.IssueStates[0]
	}
	if t.Status, err = vocabulary.ParseEnum("status", status, cfg.IssueStates); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = cfg.DefaultPriority
	}
	if t.Priority, err = vocabulary.ParseEnum("priority", priority, cfg.IssuePriorities); err != nil {
		return nil, err
	}

	taskType := req.TaskType
	if taskType == "" && len(cfg.IssueTypes) > 0 {
		taskType = cfg.IssueTypes[0]
	}
	if t.TaskType, err = vocabulary.ParseEnum("task_type", taskType, cfg.IssueTypes); err != nil {
		return nil, err
	}

	reporter := req.Reporter
	if reporter == "" && cfg.AutoSetReporter {
		reporter = cfg.DefaultReporter
		if reporter == "" {
			reporter = identity.ResolveCurrentUser(s.ws)
		}
	}
	t.Reporter = identity.ResolveMeAlias(reporter, s.ws)

	assignee := req.Assignee
	if assignee == "" {
		assignee = cfg.DefaultAssignee
	}
	t.Assignee = identity.ResolveMeAlias(assignee, s.ws)

	for _, tag := range req.Tags {
		canonical, err := vocabulary.CheckListValue("tag", tag, cfg.Tags)
		if err != nil {
			return nil, err
		}
		t.Tags = append(t.Tags, canonical)
	}

	for name := range req.CustomFields {
		if err := vocabulary.CheckCustomFieldName(name); err != nil {
			return nil, err
		}
		if _, err := vocabulary.CheckListValue("custom_field", name, cfg.CustomFields); err != nil {
			return nil, err
		}
	}

	// A new project directory must not collide with an existing project's
	// directory or configured name.
	if _, statErr := os.Stat(s.ws.ProjectDir(prefix)); os.IsNotExist(statErr) {
		if err := s.ws.ValidateNewPrefix(prefix); err != nil {
			return nil, err
		}
	}
	if err := s.ws.EnsureProjectDir(prefix); err != nil {
		return nil, err
	}

	number, err := s.NextID(prefix)
	if err != nil {
		return nil, err
	}
	t.ID = FormatID(prefix, number)

	now := Now()
	t.Created = now
	t.Modified = now
	t.History = []HistoryEntry{{
		Date:    now,
		Actor:   actorOrUser(req.Actor, s.ws),
		Changes: []HistoryChange{{Field: "created", New: t.ID}},
	}}

	if err := s.write(t); err != nil {
		return nil, err
	}
	log.Printf("created %s", t.ID)
	return t, nil
}

// NextID scans the project directory and returns max numeric stem + 1.
func (s *Store) NextID(prefix string) (int, error) {
	entries, err := os.ReadDir(s.ws.ProjectDir(prefix))
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("scan project %s: %w", prefix, err)
	}

	maxID := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".yml")
		if n, err := strconv.Atoi(stem); err == nil && n > maxID {
			maxID = n
		}
	}
	return maxID + 1, nil
}

// Get loads a task by ID. When project is set it overrides the ID's prefix
// (supporting bare numeric IDs from project-scoped calls).
func (s *Store) Get(id string, project string) (*Task, error) {
	path, fullID, err := s.resolvePath(id, project)
	if err != nil {
		return nil, err
	}
	t, err := readTask(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: fullID}
		}
		return nil, err
	}
	if t.ID == "" {
		t.ID = fullID
	}
	return t, nil
}

// Delete removes a task file. Sprint membership is intentionally untouched;
// the integrity pass (or a caller passing cleanup) sweeps the references.
func (s *Store) Delete(id string, project string) (bool, error) {
	path, _, err := s.resolvePath(id, project)
	if err != nil {
		return false, err
	}
	unlock := lockPath(path)
	defer unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Save writes an already-loaded task back to disk, bumping modified.
// Used by writers that mutate tasks outside Update (sprint assignment).
func (s *Store) Save(t *Task) error {
	t.Modified = Now()
	return s.write(t)
}

// Search walks the requested project directories (all when project is empty)
// and returns the tasks matching the predicate, sorted by ID. Directories
// are scanned concurrently; files that fail even the tolerant parse are
// skipped with a debug log rather than failing the whole listing.
func (s *Store) Search(project string, match func(*Task) bool) ([]*Task, error) {
	var prefixes []string
	if project != "" {
		prefixes = []string{project}
	} else {
		var err error
		prefixes, err = s.ws.ListProjects()
		if err != nil {
			return nil, err
		}
	}

	p := pool.NewWithResults[[]*Task]().WithMaxGoroutines(4)
	for _, prefix := range prefixes {
		prefix := prefix
		p.Go(func() []*Task {
			return s.scanProject(prefix, match)
		})
	}

	var all []*Task
	for _, batch := range p.Wait() {
		all = append(all, batch...)
	}

	sort.Slice(all, func(i, j int) bool {
		pi, ni, _ := ParseID(all[i].ID)
		pj, nj, _ := ParseID(all[j].ID)
		if pi != pj {
			return pi < pj
		}
		return ni < nj
	})
	return all, nil
}

func (s *Store) scanProject(prefix string, match func(*Task) bool) []*Task {
	entries, err := os.ReadDir(s.ws.ProjectDir(prefix))
	if err != nil {
		return nil
	}

	var out []*Task
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".yml")
		number, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		t, err := readTask(filepath.Join(s.ws.ProjectDir(prefix), entry.Name()))
		if err != nil {
			log.Printf("skip %s/%s: %v", prefix, entry.Name(), err)
			continue
		}
		if t.ID == "" {
			t.ID = FormatID(prefix, number)
		}
		if match == nil || match(t) {
			out = append(out, t)
		}
	}
	return out
}

// resolvePath maps (id, project) to the file path and the full ID.
func (s *Store) resolvePath(id string, project string) (string, string, error) {
	if project != "" {
		if n, err := strconv.Atoi(id); err == nil {
			return s.ws.TaskFilePath(project, n), FormatID(project, n), nil
		}
	}
	prefix, number, ok := ParseID(id)
	if !ok {
		return "", "", &InvalidIDError{ID: id}
	}
	if project != "" && !strings.EqualFold(prefix, project) {
		return "", "", &InvalidIDError{ID: id}
	}
	return s.ws.TaskFilePath(prefix, number), FormatID(prefix, number), nil
}

// write renders the canonical YAML and replaces the file atomically under
// the per-path lock.
func (s *Store) write(t *Task) error {
	prefix, number, ok := ParseID(t.ID)
	if !ok {
		return &InvalidIDError{ID: t.ID}
	}
	if t.Relationships.Empty() {
		t.Relationships = nil
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		// Freshly validated data failing to serialize is an invariant breach.
		panic(fmt.Sprintf("canonical serialization of %s failed: %v", t.ID, err))
	}
	if len(t.Extra) > 0 {
		extraData, err := marshalExtra(t.Extra)
		if err != nil {
			panic(fmt.Sprintf("canonical serialization of %s failed: %v", t.ID, err))
		}
		data = append(data, extraData...)
	}

	path := s.ws.TaskFilePath(prefix, number)
	unlock := lockPath(path)
	defer unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".task-*.yml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func actorOrUser(actor string, ws workspace.Workspace) string {
	if actor != "" {
		return identity.ResolveMeAlias(actor, ws)
	}
	return identity.ResolveCurrentUser(ws)
}
