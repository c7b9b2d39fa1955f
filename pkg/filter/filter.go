// Package filter composes task list filters from CLI and API inputs and
// evaluates them against task snapshots. Values within one field OR
// together; distinct fields AND. Tag and custom-field matching is
// case-insensitive, separator-insensitive, and substring-based.
package filter

import (
	"fmt"
	"strings"

	"github.com/localtaskrepo/lotar/pkg/task"
	"github.com/localtaskrepo/lotar/pkg/vocabulary"
)

// TaskListFilter is the composed filter applied to task listings.
type TaskListFilter struct {
	Statuses     []string            `json:"status,omitempty"`
	Priorities   []string            `json:"priority,omitempty"`
	TaskTypes    []string            `json:"task_type,omitempty"`
	Project      string              `json:"project,omitempty"`
	Assignee     string              `json:"assignee,omitempty"`
	Tags         []string            `json:"tags,omitempty"`
	TextQuery    string              `json:"text_query,omitempty"`
	Sprints      []int               `json:"sprints,omitempty"`
	CustomFields map[string][]string `json:"custom_fields,omitempty"`
}

// Matches evaluates the filter against one task.
func (f *TaskListFilter) Matches(t *task.Task) bool {
	if len(f.Statuses) > 0 && !anyEqualFold(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !anyEqualFold(f.Priorities, t.Priority) {
		return false
	}
	if len(f.TaskTypes) > 0 && !anyEqualFold(f.TaskTypes, t.TaskType) {
		return false
	}
	if f.Assignee != "" && !strings.EqualFold(f.Assignee, t.Assignee) {
		return false
	}
	if len(f.Tags) > 0 {
		hit := false
		for _, want := range f.Tags {
			if tagMatches(t.Tags, want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(f.Sprints) > 0 {
		hit := false
		for _, want := range f.Sprints {
			if t.InSprint(want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for name, values := range f.CustomFields {
		if !customFieldMatches(t.CustomFields, name, values) {
			return false
		}
	}
	if f.TextQuery != "" && !textMatches(t, f.TextQuery) {
		return false
	}
	return true
}

// anyEqualFold reports whether any candidate equals value under the
// vocabulary normalization rules.
func anyEqualFold(candidates []string, value string) bool {
	normalized := vocabulary.Normalize(value)
	for _, candidate := range candidates {
		if vocabulary.Normalize(candidate) == normalized {
			return true
		}
	}
	return false
}

// tagMatches applies normalized substring matching: the filter value
// matches when, after normalization, it is contained in (or equals) a tag.
func tagMatches(tags []string, want string) bool {
	normalizedWant := vocabulary.Normalize(want)
	if normalizedWant == "" {
		return false
	}
	for _, tag := range tags {
		if strings.Contains(vocabulary.Normalize(tag), normalizedWant) {
			return true
		}
	}
	return false
}

// customFieldMatches checks one custom field against its wanted values.
// Scalars and sequences both match by normalized substring.
func customFieldMatches(fields map[string]any, name string, wanted []string) bool {
	value, ok := lookupFold(fields, name)
	if !ok {
		return false
	}

	var haystack []string
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			haystack = append(haystack, fmt.Sprint(item))
		}
	default:
		haystack = []string{fmt.Sprint(v)}
	}

	for _, want := range wanted {
		normalizedWant := vocabulary.Normalize(want)
		for _, candidate := range haystack {
			if strings.Contains(vocabulary.Normalize(candidate), normalizedWant) {
				return true
			}
		}
	}
	return false
}

func lookupFold(fields map[string]any, name string) (any, bool) {
	normalized := vocabulary.Normalize(name)
	for key, value := range fields {
		if vocabulary.Normalize(key) == normalized {
			return value, true
		}
	}
	return nil, false
}

// textMatches applies the free-text query over id, title, description,
// and tags.
func textMatches(t *task.Task, query string) bool {
	query = strings.ToLower(query)
	if strings.Contains(strings.ToLower(t.ID), query) ||
		strings.Contains(strings.ToLower(t.Title), query) ||
		strings.Contains(strings.ToLower(t.Description), query) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
