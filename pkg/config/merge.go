package config

import (
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

// LoadAndMerge resolves the workspace-level configuration: built-in defaults
// overlaid by the workspace global file, the home config, and environment
// overrides, in ascending precedence. Every handler re-resolves from disk so
// config edits are observed immediately.
func LoadAndMerge(ws workspace.Workspace) (*Resolved, error) {
	global, err := loadLayer(ws.GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	home, err := loadLayer(homeConfigPath())
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{Config: defaultConfig(), Provenance: defaultProvenance()}
	applyLayer(resolved, global, SourceGlobal)
	applyLayer(resolved, home, SourceHome)
	applyLayer(resolved, envLayer(), SourceEnv)
	return resolved, nil
}

// GetProjectConfig resolves the project-scoped view: the workspace view with
// the project file overriding project-scoped concerns. Workspace-only fields
// (server.port, default.project, default.prefix) keep their workspace values;
// environment overrides still win over the project file.
func GetProjectConfig(ws workspace.Workspace, prefix string) (*Resolved, error) {
	global, err := loadLayer(ws.GlobalConfigPath())
	if err != nil {
		return nil, err
	}
	home, err := loadLayer(homeConfigPath())
	if err != nil {
		return nil, err
	}
	project, err := loadLayer(ws.ProjectConfigPath(prefix))
	if err != nil {
		return nil, err
	}

	// Workspace-only fields never come from the project layer.
	project.Server = nil
	if project.Default != nil {
		project.Default.Project = nil
		project.Default.Prefix = nil
	}

	resolved := &Resolved{Config: defaultConfig(), Provenance: defaultProvenance()}
	applyLayer(resolved, global, SourceGlobal)
	applyLayer(resolved, project, SourceProject)
	applyLayer(resolved, home, SourceHome)
	applyLayer(resolved, envLayer(), SourceEnv)
	return resolved, nil
}

// applyLayer overlays one file layer onto the resolved view, stamping
// provenance for every field the layer actually sets.
func applyLayer(r *Resolved, fc *fileConfig, source Source) {
	set := func(key string) { r.Provenance[key] = source }

	if s := fc.Server; s != nil {
		if s.Port != nil {
			r.ServerPort = *s.Port
			set("server.port")
		}
	}
	if d := fc.Default; d != nil {
		if d.Project != nil {
			r.DefaultProject = *d.Project
			set("default.project")
		}
		if d.Prefix != nil {
			r.DefaultPrefix = *d.Prefix
			set("default.prefix")
		}
		if d.Assignee != nil {
			r.DefaultAssignee = *d.Assignee
			set("default.assignee")
		}
		if d.Reporter != nil {
			r.DefaultReporter = *d.Reporter
			set("default.reporter")
		}
		if d.Priority != nil {
			r.DefaultPriority = *d.Priority
			set("default.priority")
		}
		if d.Status != nil {
			r.DefaultStatus = *d.Status
			set("default.status")
		}
	}
	if i := fc.Issue; i != nil {
		if len(i.States) > 0 {
			r.IssueStates = append([]string(nil), i.States...)
			set("issue.states")
		}
		if len(i.Types) > 0 {
			r.IssueTypes = append([]string(nil), i.Types...)
			set("issue.types")
		}
		if len(i.Priorities) > 0 {
			r.IssuePriorities = append([]string(nil), i.Priorities...)
			set("issue.priorities")
		}
	}
	if c := fc.Custom; c != nil {
		if len(c.Tags) > 0 {
			r.Tags = append([]string(nil), c.Tags...)
			set("custom.tags")
		}
		if len(c.Fields) > 0 {
			r.CustomFields = append([]string(nil), c.Fields...)
			set("custom.fields")
		}
	}
	if s := fc.Scan; s != nil {
		if s.Enable != nil {
			r.ScanEnable = *s.Enable
			set("scan.enable")
		}
		if s.SignalWords != nil {
			r.ScanSignalWords = *s.SignalWords
			set("scan.signal_words")
		}
		if s.TicketWords != nil {
			r.ScanTicketWords = *s.TicketWords
			set("scan.ticket_words")
		}
		if s.StripAttributes != nil {
			r.ScanStripAttributes = *s.StripAttributes
			set("scan.strip_attributes")
		}
	}
	if a := fc.Auto; a != nil {
		if a.SetReporter != nil {
			r.AutoSetReporter = *a.SetReporter
			set("auto.set_reporter")
		}
		if a.AssignOnStatus != nil {
			r.AutoAssignOnStatus = *a.AssignOnStatus
			set("auto.assign_on_status")
		}
	}
	if b := fc.Branch; b != nil {
		if len(b.StatusAliases) > 0 {
			r.BranchStatusAliases = copyAliasMap(b.StatusAliases)
			set("branch.status_aliases")
		}
		if len(b.TypeAliases) > 0 {
			r.BranchTypeAliases = copyAliasMap(b.TypeAliases)
			set("branch.type_aliases")
		}
		if len(b.PriorityAliases) > 0 {
			r.BranchPriorityAliases = copyAliasMap(b.PriorityAliases)
			set("branch.priority_aliases")
		}
	}
	if s := fc.Sprint; s != nil {
		if s.Defaults != nil {
			r.SprintDefaults = *s.Defaults
			set("sprint.defaults")
		}
		if s.Notifications != nil && s.Notifications.Enabled != nil {
			r.SprintNotificationsEnabled = *s.Notifications.Enabled
			set("sprint.notifications.enabled")
		}
	}
	if p := fc.Project; p != nil {
		if p.Name != nil {
			r.ProjectName = *p.Name
			set("project.name")
		}
	}
}

// copyAliasMap clones an alias map so layers never share backing storage.
func copyAliasMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
