package mcpserver

import (
	"sort"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/vocabulary"
)

// Hints are the per-workspace valid values attached to tool schemas (single
// project) or response payloads (multiple projects).
type Hints struct {
	Projects     []string `json:"projects,omitempty"`
	Statuses     []string `json:"statuses,omitempty"`
	Priorities   []string `json:"priorities,omitempty"`
	Types        []string `json:"types,omitempty"`
	Members      []string `json:"members,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	CustomFields []string `json:"custom_fields,omitempty"`
}

// hints resolves the current workspace vocabulary. Config is re-read on
// every call so edits show up immediately, like every other surface.
func (a *Adapter) hints() *Hints {
	h := &Hints{}

	projects, err := a.ws.ListProjects()
	if err == nil {
		h.Projects = projects
	}

	var resolved *config.Resolved
	if len(projects) == 1 {
		resolved, err = config.GetProjectConfig(a.ws, projects[0])
	} else {
		resolved, err = config.LoadAndMerge(a.ws)
	}
	if err != nil {
		return h
	}

	h.Statuses = resolved.IssueStates
	h.Priorities = resolved.IssuePriorities
	h.Types = resolved.IssueTypes
	h.Tags = withoutWildcard(resolved.Tags)
	h.CustomFields = withoutWildcard(resolved.CustomFields)
	h.Members = a.members()
	return h
}

// members collects the distinct assignees and reporters across all tasks.
func (a *Adapter) members() []string {
	seen := map[string]bool{}
	all, err := a.tasks.Search("", nil)
	if err != nil {
		return nil
	}
	for _, t := range all {
		for _, name := range []string{t.Assignee, t.Reporter} {
			if name != "" {
				seen[name] = true
			}
		}
	}
	var members []string
	for name := range seen {
		members = append(members, name)
	}
	sort.Strings(members)
	return members
}

// schemaHint renders an enum list into a schema description suffix for the
// single-project case.
func schemaHint(label string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	out := " Valid " + label + ": "
	for i, v := range values {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

func withoutWildcard(values []string) []string {
	var out []string
	for _, v := range values {
		if v != vocabulary.Wildcard {
			out = append(out, v)
		}
	}
	return out
}
