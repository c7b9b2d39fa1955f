package sprint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/logger"
	"github.com/localtaskrepo/lotar/pkg/task"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

var log = logger.New("sprint:store")

// NotFoundError reports a sprint ID with no backing file.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("sprint %d not found", e.ID)
}

// Store owns the sprint YAML files under @sprints/.
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

// knownSprintKeys are the canonical sprint file keys.
var knownSprintKeys = map[string]bool{
	"plan": true, "actual": true, "tasks": true, "history": true,
	"created": true, "modified": true,
}

// List returns all sprints sorted by ID. Each record passes through the
// canonicalization rules in memory so callers see the warnings without the
// files being rewritten.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.ws.SprintsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []*Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSuffix(entry.Name(), ".yml"))
		if err != nil {
			continue
		}
		record, err := s.Get(id)
		if err != nil {
			log.Printf("skip sprint %d: %v", id, err)
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// Get loads and canonicalizes (non-persisting) one sprint.
func (s *Store) Get(id int) (*Record, error) {
	data, err := os.ReadFile(s.ws.SprintFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}

	var raw map[string]any
	rawErr := yaml.Unmarshal(data, &raw)

	var sp Sprint
	if err := yaml.Unmarshal(data, &sp); err != nil {
		return nil, fmt.Errorf("parse sprint %d: %w", id, err)
	}
	if rawErr == nil {
		for key, value := range raw {
			if knownSprintKeys[key] {
				continue
			}
			if sp.Extra == nil {
				sp.Extra = map[string]any{}
			}
			sp.Extra[key] = value
		}
	}

	warnings := Canonicalize(&sp)
	return &Record{ID: id, Sprint: &sp, Warnings: warnings}, nil
}

// NextID scans the sprint directory and returns max numeric stem + 1.
func (s *Store) NextID() (int, error) {
	entries, err := os.ReadDir(s.ws.SprintsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, err
	}

	maxID := 0
	for _, entry := range entries {
		stem := strings.TrimSuffix(entry.Name(), ".yml")
		if n, err := strconv.Atoi(stem); err == nil && n > maxID {
			maxID = n
		}
	}
	return maxID + 1, nil
}

// Create writes a new sprint, filling only the plan fields the caller left
// unset from the configured defaults. The applied default names are
// returned so the handler can report them.
func (s *Store) Create(sp *Sprint, defaults *config.SprintDefaults) (*Record, []string, error) {
	var applied []string
	if defaults != nil {
		if sp.Plan.Length == "" && sp.Plan.EndsAt.IsZero() && defaults.Length != "" {
			sp.Plan.Length = defaults.Length
			applied = append(applied, "length")
		}
		if sp.Plan.OverdueAfter == "" && defaults.OverdueAfter != "" {
			sp.Plan.OverdueAfter = defaults.OverdueAfter
			applied = append(applied, "overdue_after")
		}
		if sp.Plan.Capacity == nil && (defaults.CapacityPoints > 0 || defaults.CapacityHours > 0) {
			sp.Plan.Capacity = &Capacity{Points: defaults.CapacityPoints, Hours: defaults.CapacityHours}
			applied = append(applied, "capacity")
		}
	}

	if sp.Plan.Length != "" {
		if _, err := ParseLength(sp.Plan.Length); err != nil {
			return nil, nil, err
		}
	}

	id, err := s.NextID()
	if err != nil {
		return nil, nil, err
	}

	now := task.Now()
	sp.Created = now
	sp.Modified = now

	warnings := Canonicalize(sp)
	if err := s.write(id, sp); err != nil {
		return nil, nil, err
	}
	log.Printf("created sprint %d", id)
	return &Record{ID: id, Sprint: sp, Warnings: warnings}, applied, nil
}

// Update canonicalizes and persists an existing sprint, bumping modified.
func (s *Store) Update(id int, sp *Sprint) (*Record, error) {
	if _, err := os.Stat(s.ws.SprintFilePath(id)); err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, err
	}

	sp.Modified = task.Now()
	warnings := Canonicalize(sp)
	if err := s.write(id, sp); err != nil {
		return nil, err
	}
	return &Record{ID: id, Sprint: sp, Warnings: warnings}, nil
}

// Save persists a sprint without touching modified; used by writers that
// already stamped it.
func (s *Store) Save(id int, sp *Sprint) error {
	Canonicalize(sp)
	return s.write(id, sp)
}

// Delete removes a sprint file, reporting whether it existed.
func (s *Store) Delete(id int) (bool, error) {
	err := os.Remove(s.ws.SprintFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NormalizeResult reports what a normalize pass did (or would do).
type NormalizeResult struct {
	SprintID int       `json:"sprint_id"`
	Changed  bool      `json:"changed"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Normalize rewrites every sprint in canonical form. In check mode nothing
// is written; Changed reports whether disk would change, which the CLI
// turns into a failure.
func (s *Store) Normalize(check bool) ([]NormalizeResult, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}

	var results []NormalizeResult
	for _, record := range records {
		current, err := os.ReadFile(s.ws.SprintFilePath(record.ID))
		if err != nil {
			return nil, err
		}
		canonical, err := marshalSprint(record.Sprint)
		if err != nil {
			return nil, err
		}
		changed := string(current) != string(canonical)
		if changed && !check {
			if err := s.write(record.ID, record.Sprint); err != nil {
				return nil, err
			}
		}
		results = append(results, NormalizeResult{SprintID: record.ID, Changed: changed, Warnings: record.Warnings})
	}
	return results, nil
}

// Canonicalize applies the normalization rules in place and returns the
// warnings they raise. The only rule today: an explicit plan.ends_at wins
// over plan.length, which is dropped.
func Canonicalize(sp *Sprint) []Warning {
	var warnings []Warning
	if !sp.Plan.EndsAt.IsZero() && sp.Plan.Length != "" {
		sp.Plan.Length = ""
		warnings = append(warnings, Warning{
			Code:    WarnPlanLengthIgnored,
			Message: "plan.length was ignored because plan.ends_at was provided.",
		})
	}
	return warnings
}

func marshalSprint(sp *Sprint) ([]byte, error) {
	data, err := yaml.Marshal(sp)
	if err != nil {
		return nil, err
	}
	if len(sp.Extra) > 0 {
		keys := make([]string, 0, len(sp.Extra))
		for key := range sp.Extra {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		doc := make(yaml.MapSlice, 0, len(keys))
		for _, key := range keys {
			doc = append(doc, yaml.MapItem{Key: key, Value: sp.Extra[key]})
		}
		extraData, err := yaml.Marshal(doc)
		if err != nil {
			return nil, err
		}
		data = append(data, extraData...)
	}
	return data, nil
}

// write renders canonical YAML and replaces the file atomically.
func (s *Store) write(id int, sp *Sprint) error {
	data, err := marshalSprint(sp)
	if err != nil {
		panic(fmt.Sprintf("canonical serialization of sprint %d failed: %v", id, err))
	}

	if err := s.ws.EnsureSprintsDir(); err != nil {
		return err
	}

	path := s.ws.SprintFilePath(id)
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sprint-*.yml")
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
