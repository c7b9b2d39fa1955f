package config

import (
	"strconv"
	"strings"

	"github.com/localtaskrepo/lotar/pkg/vocabulary"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

// fieldAliases maps accepted flat spellings onto canonical dotted keys.
var fieldAliases = map[string]string{
	"server_port":      "server.port",
	"default_project":  "default.project",
	"default_prefix":   "default.prefix",
	"default_assignee": "default.assignee",
	"default_reporter": "default.reporter",
	"default_priority": "default.priority",
	"default_status":   "default.status",
	"issue_states":     "issue.states",
	"issue_types":      "issue.types",
	"issue_priorities": "issue.priorities",
	"tags":             "custom.tags",
	"custom_fields":    "custom.fields",
	"project_name":     "project.name",
}

// globalOnlyFields may only be set at workspace scope.
var globalOnlyFields = map[string]bool{
	"server.port":     true,
	"default.project": true,
	"default.prefix":  true,
}

// settableFields is the whitelist for config set, keyed by canonical name.
var settableFields = []string{
	"server.port",
	"default.project",
	"default.prefix",
	"default.assignee",
	"default.reporter",
	"default.priority",
	"default.status",
	"issue.states",
	"issue.types",
	"issue.priorities",
	"custom.tags",
	"custom.fields",
	"scan.enable",
	"scan.signal_words",
	"scan.ticket_words",
	"scan.strip_attributes",
	"auto.set_reporter",
	"auto.assign_on_status",
	"sprint.defaults.length",
	"sprint.defaults.capacity_points",
	"sprint.defaults.capacity_hours",
	"sprint.defaults.overdue_after",
	"sprint.notifications.enabled",
	"project.name",
}

// CanonicalFieldName resolves aliases and validates the field against the
// whitelist for the requested scope, returning a suggestion on a near miss.
func CanonicalFieldName(field string, projectScope bool) (string, error) {
	name := field
	if alias, ok := fieldAliases[strings.ToLower(field)]; ok {
		name = alias
	}

	allowed := make([]string, 0, len(settableFields))
	for _, candidate := range settableFields {
		if projectScope && globalOnlyFields[candidate] {
			continue
		}
		if !projectScope && candidate == "project.name" {
			continue
		}
		allowed = append(allowed, candidate)
	}

	for _, candidate := range allowed {
		if candidate == name {
			return name, nil
		}
	}

	uerr := &UnknownFieldError{Field: field, Allowed: allowed}
	if closest, distance := closestField(name, allowed); distance < len(name)/2+1 {
		uerr.Suggestion = closest
	}
	return "", uerr
}

// UpdateField validates and persists a single config field in the global or
// project file. The write is atomic (temp file + rename).
func UpdateField(ws workspace.Workspace, field, value, project string) error {
	name, err := CanonicalFieldName(field, project != "")
	if err != nil {
		return err
	}

	path := ws.GlobalConfigPath()
	if project != "" {
		path = ws.ProjectConfigPath(project)
	}

	fc, err := loadLayer(path)
	if err != nil {
		return err
	}
	if err := setField(fc, name, value); err != nil {
		return err
	}
	return writeLayer(path, fc)
}

// setField applies a validated value onto the layer struct.
func setField(fc *fileConfig, name, value string) error {
	switch name {
	case "server.port":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > 65535 {
			return &InvalidValueError{Field: name, Reason: "must be a port number between 1 and 65535"}
		}
		if fc.Server == nil {
			fc.Server = &serverSection{}
		}
		fc.Server.Port = &n
	case "default.project":
		ensureDefault(fc)
		fc.Default.Project = &value
		prefix := workspace.GeneratePrefix(value)
		fc.Default.Prefix = &prefix
	case "default.prefix":
		if !workspace.ValidPrefix(value) {
			return &InvalidValueError{Field: name, Reason: "must be 1-20 uppercase alphanumerics, - or _"}
		}
		ensureDefault(fc)
		fc.Default.Prefix = &value
	case "default.assignee":
		ensureDefault(fc)
		fc.Default.Assignee = &value
	case "default.reporter":
		ensureDefault(fc)
		fc.Default.Reporter = &value
	case "default.priority":
		ensureDefault(fc)
		fc.Default.Priority = &value
	case "default.status":
		ensureDefault(fc)
		fc.Default.Status = &value
	case "issue.states", "issue.types", "issue.priorities":
		values := splitList(value)
		if len(values) == 0 {
			return &InvalidValueError{Field: name, Reason: "must be a non-empty comma-separated list"}
		}
		if fc.Issue == nil {
			fc.Issue = &issueSection{}
		}
		switch name {
		case "issue.states":
			fc.Issue.States = values
		case "issue.types":
			fc.Issue.Types = values
		case "issue.priorities":
			fc.Issue.Priorities = values
		}
	case "custom.tags", "custom.fields":
		values := splitList(value)
		if len(values) == 0 {
			return &InvalidValueError{Field: name, Reason: "must be a non-empty comma-separated list or *"}
		}
		if fc.Custom == nil {
			fc.Custom = &customSection{}
		}
		if name == "custom.tags" {
			fc.Custom.Tags = values
		} else {
			fc.Custom.Fields = values
		}
	case "scan.enable", "scan.signal_words", "scan.ticket_words", "scan.strip_attributes":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &InvalidValueError{Field: name, Reason: "must be true or false"}
		}
		if fc.Scan == nil {
			fc.Scan = &scanSection{}
		}
		switch name {
		case "scan.enable":
			fc.Scan.Enable = &b
		case "scan.signal_words":
			fc.Scan.SignalWords = &b
		case "scan.ticket_words":
			fc.Scan.TicketWords = &b
		case "scan.strip_attributes":
			fc.Scan.StripAttributes = &b
		}
	case "auto.set_reporter", "auto.assign_on_status":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &InvalidValueError{Field: name, Reason: "must be true or false"}
		}
		if fc.Auto == nil {
			fc.Auto = &autoSection{}
		}
		if name == "auto.set_reporter" {
			fc.Auto.SetReporter = &b
		} else {
			fc.Auto.AssignOnStatus = &b
		}
	case "sprint.defaults.length", "sprint.defaults.overdue_after":
		ensureSprintDefaults(fc)
		if name == "sprint.defaults.length" {
			fc.Sprint.Defaults.Length = value
		} else {
			fc.Sprint.Defaults.OverdueAfter = value
		}
	case "sprint.defaults.capacity_points", "sprint.defaults.capacity_hours":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return &InvalidValueError{Field: name, Reason: "must be a non-negative number"}
		}
		ensureSprintDefaults(fc)
		if name == "sprint.defaults.capacity_points" {
			fc.Sprint.Defaults.CapacityPoints = f
		} else {
			fc.Sprint.Defaults.CapacityHours = f
		}
	case "sprint.notifications.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &InvalidValueError{Field: name, Reason: "must be true or false"}
		}
		if fc.Sprint == nil {
			fc.Sprint = &sprintSection{}
		}
		fc.Sprint.Notifications = &notificationSection{Enabled: &b}
	case "project.name":
		if value == "" {
			return &InvalidValueError{Field: name, Reason: "must not be empty"}
		}
		fc.Project = &projectSection{Name: &value}
	default:
		return &UnknownFieldError{Field: name, Allowed: settableFields}
	}
	return nil
}

func ensureSprintDefaults(fc *fileConfig) {
	if fc.Sprint == nil {
		fc.Sprint = &sprintSection{}
	}
	if fc.Sprint.Defaults == nil {
		fc.Sprint.Defaults = &SprintDefaults{}
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// closestField finds the whitelist entry nearest to name by edit distance.
func closestField(name string, allowed []string) (string, int) {
	return vocabulary.ClosestMatch(name, allowed)
}
