package task

import (
	"fmt"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/identity"
	"github.com/localtaskrepo/lotar/pkg/vocabulary"
)

// Patch carries a field-by-field task update. Nil pointers leave the field
// untouched; set pointers are validated against the project vocabulary.
type Patch struct {
	Title       *string
	Subtitle    *string
	Description *string
	Status      *string
	Priority    *string
	TaskType    *string
	Reporter    *string
	Assignee    *string
	DueDate     *string
	Effort      *string
	Tags        *[]string
	// CustomFields sets (or, with a nil value, removes) individual fields.
	CustomFields map[string]any
	Actor        string
}

// Update loads the task, applies the patch field by field, validates, writes
// the canonical file, and appends one history entry covering every change.
func (s *Store) Update(id string, project string, patch Patch) (*Task, error) {
	t, err := s.Get(id, project)
	if err != nil {
		return nil, err
	}

	cfg, err := config.GetProjectConfig(s.ws, t.Project())
	if err != nil {
		return nil, err
	}

	var changes []HistoryChange
	record := func(field, old, new string) {
		if old != new {
			changes = append(changes, HistoryChange{Field: field, Old: old, New: new})
		}
	}

	if patch.Title != nil {
		record("title", t.Title, *patch.Title)
		t.Title = *patch.Title
	}
	if patch.Subtitle != nil {
		record("subtitle", t.Subtitle, *patch.Subtitle)
		t.Subtitle = *patch.Subtitle
	}
	if patch.Description != nil {
		record("description", t.Description, *patch.Description)
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		status, err := resolveAliased(cfg, "status", *patch.Status, cfg.IssueStates, cfg.BranchStatusAliases)
		if err != nil {
			return nil, err
		}
		record("status", t.Status, status)
		t.Status = status
	}
	if patch.Priority != nil {
		priority, err := resolveAliased(cfg, "priority", *patch.Priority, cfg.IssuePriorities, cfg.BranchPriorityAliases)
		if err != nil {
			return nil, err
		}
		record("priority", t.Priority, priority)
		t.Priority = priority
	}
	if patch.TaskType != nil {
		taskType, err := resolveAliased(cfg, "task_type", *patch.TaskType, cfg.IssueTypes, cfg.BranchTypeAliases)
		if err != nil {
			return nil, err
		}
		record("task_type", t.TaskType, taskType)
		t.TaskType = taskType
	}
	if patch.Reporter != nil {
		reporter := identity.ResolveMeAlias(*patch.Reporter, s.ws)
		record("reporter", t.Reporter, reporter)
		t.Reporter = reporter
	}
	if patch.Assignee != nil {
		assignee := identity.ResolveMeAlias(*patch.Assignee, s.ws)
		record("assignee", t.Assignee, assignee)
		t.Assignee = assignee
	}
	if patch.DueDate != nil {
		record("due_date", t.DueDate, *patch.DueDate)
		t.DueDate = *patch.DueDate
	}
	if patch.Effort != nil {
		record("effort", t.Effort, *patch.Effort)
		t.Effort = *patch.Effort
	}
	if patch.Tags != nil {
		var tags []string
		for _, tag := range *patch.Tags {
			canonical, err := vocabulary.CheckListValue("tag", tag, cfg.Tags)
			if err != nil {
				return nil, err
			}
			tags = append(tags, canonical)
		}
		record("tags", fmt.Sprint(t.Tags), fmt.Sprint(tags))
		t.Tags = tags
	}
	for name, value := range patch.CustomFields {
		if err := vocabulary.CheckCustomFieldName(name); err != nil {
			return nil, err
		}
		if _, err := vocabulary.CheckListValue("custom_field", name, cfg.CustomFields); err != nil {
			return nil, err
		}
		old := ""
		if existing, ok := t.CustomFields[name]; ok {
			old = fmt.Sprint(existing)
		}
		if value == nil {
			record("custom."+name, old, "")
			delete(t.CustomFields, name)
			continue
		}
		record("custom."+name, old, fmt.Sprint(value))
		if t.CustomFields == nil {
			t.CustomFields = map[string]any{}
		}
		t.CustomFields[name] = value
	}

	if len(changes) == 0 {
		return t, nil
	}

	now := Now()
	t.Modified = now
	t.History = append(t.History, HistoryEntry{
		Date:    now,
		Actor:   actorOrUser(patch.Actor, s.ws),
		Changes: changes,
	})

	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetStatus is the status-shorthand update used by task status and the
// matching HTTP endpoint.
func (s *Store) SetStatus(id, project, status, actor string) (*Task, error) {
	return s.Update(id, project, Patch{Status: &status, Actor: actor})
}

// AddComment appends a comment and returns the task and the new comment's
// stable 0-based index.
func (s *Store) AddComment(id, project, author, text string) (*Task, int, error) {
	if text == "" {
		return nil, 0, fmt.Errorf("comment text must not be empty")
	}
	t, err := s.Get(id, project)
	if err != nil {
		return nil, 0, err
	}

	now := Now()
	author = actorOrUser(author, s.ws)
	t.Comments = append(t.Comments, Comment{Author: author, Date: now, Text: text})
	index := len(t.Comments) - 1

	t.Modified = now
	t.History = append(t.History, HistoryEntry{
		Date:    now,
		Actor:   author,
		Changes: []HistoryChange{{Field: fmt.Sprintf("comment#%d", index), New: text}},
	})

	if err := s.write(t); err != nil {
		return nil, 0, err
	}
	return t, index, nil
}

// UpdateComment replaces the text of the comment at index, recording the
// edit in history as comment#<index>.
func (s *Store) UpdateComment(id, project string, index int, text, actor string) (*Task, error) {
	t, err := s.Get(id, project)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(t.Comments) {
		return nil, fmt.Errorf("task %s has no comment #%d", t.ID, index)
	}

	now := Now()
	old := t.Comments[index].Text
	t.Comments[index].Text = text
	t.Modified = now
	t.History = append(t.History, HistoryEntry{
		Date:    now,
		Actor:   actorOrUser(actor, s.ws),
		Changes: []HistoryChange{{Field: fmt.Sprintf("comment#%d", index), Old: old, New: text}},
	})

	if err := s.write(t); err != nil {
		return nil, err
	}
	return t, nil
}

// resolveAliased first consults the branch alias map, then parses against
// the allowed values.
func resolveAliased(cfg *config.Resolved, field, raw string, allowed []string, aliases map[string]string) (string, error) {
	if target, ok := config.ResolveBranchAlias(aliases, raw); ok {
		raw = target
	}
	return vocabulary.ParseEnum(field, raw, allowed)
}
