package task

import (
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"
)

// knownTaskKeys are the canonical task file keys; anything else read from
// disk is preserved in Task.Extra and re-emitted on write.
var knownTaskKeys = map[string]bool{
	"id": true, "title": true, "subtitle": true, "description": true,
	"status": true, "priority": true, "task_type": true,
	"reporter": true, "assignee": true, "due_date": true, "effort": true,
	"tags": true, "relationships": true, "comments": true, "references": true,
	"sprints": true, "custom_fields": true, "history": true,
	"created": true, "modified": true,
}

// readTask loads a task file. Typed decoding is attempted first; on failure
// a generic YAML walk recovers the minimum viable subset so listings and
// aggregation still see the task. If the file changed mid-read (mtime moved)
// the read is retried once before giving up.
func readTask(path string) (*Task, error) {
	before, statErr := os.Stat(path)

	t, err := readTaskOnce(path)
	if err == nil || os.IsNotExist(err) {
		return t, err
	}

	if statErr == nil {
		if after, err2 := os.Stat(path); err2 == nil && !after.ModTime().Equal(before.ModTime()) {
			return readTaskOnce(path)
		}
	}
	return nil, err
}

func readTaskOnce(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	rawErr := yaml.Unmarshal(data, &raw)

	var t Task
	if err := yaml.Unmarshal(data, &t); err == nil {
		if rawErr == nil {
			t.Extra = extraKeys(raw)
		}
		return &t, nil
	}

	// Tolerant pass: walk the generic document and pull out what we can.
	// Never mutates disk; malformed fields are simply dropped.
	if rawErr != nil {
		return nil, fmt.Errorf("parse %s: %w", path, rawErr)
	}
	return taskFromGeneric(raw), nil
}

// extraKeys returns the document keys outside the canonical schema.
func extraKeys(raw map[string]any) map[string]any {
	var extra map[string]any
	for key, value := range raw {
		if knownTaskKeys[key] {
			continue
		}
		if extra == nil {
			extra = map[string]any{}
		}
		extra[key] = value
	}
	return extra
}

// marshalExtra renders the preserved unknown keys deterministically
// (sorted) for appending after the canonical fields.
func marshalExtra(extra map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	doc := make(yaml.MapSlice, 0, len(keys))
	for _, key := range keys {
		doc = append(doc, yaml.MapItem{Key: key, Value: extra[key]})
	}
	return yaml.Marshal(doc)
}

// taskFromGeneric extracts the minimum viable task from a generic document.
func taskFromGeneric(raw map[string]any) *Task {
	t := &Task{}
	t.ID = stringAt(raw, "id")
	t.Title = stringAt(raw, "title")
	t.Subtitle = stringAt(raw, "subtitle")
	t.Description = stringAt(raw, "description")
	t.Status = stringAt(raw, "status")
	t.Priority = stringAt(raw, "priority")
	t.TaskType = stringAt(raw, "task_type")
	t.Reporter = stringAt(raw, "reporter")
	t.Assignee = stringAt(raw, "assignee")
	t.DueDate = stringAt(raw, "due_date")
	t.Effort = stringAt(raw, "effort")
	t.Tags = stringsAt(raw, "tags")
	t.Sprints = intsAt(raw, "sprints")
	if cf, ok := raw["custom_fields"].(map[string]any); ok {
		t.CustomFields = cf
	}
	return t
}

func stringAt(raw map[string]any, key string) string {
	if v, ok := raw[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func stringsAt(raw map[string]any, key string) []string {
	seq, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(seq))
	for _, v := range seq {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func intsAt(raw map[string]any, key string) []int {
	seq, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	var out []int
	for _, v := range seq {
		switch n := v.(type) {
		case int:
			out = append(out, n)
		case int64:
			out = append(out, int(n))
		case uint64:
			out = append(out, int(n))
		case float64:
			out = append(out, int(n))
		}
	}
	return out
}
