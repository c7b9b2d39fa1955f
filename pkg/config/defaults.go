package config

// Built-in defaults, the lowest configuration layer.
func defaultConfig() Config {
	return Config{
		ServerPort:      8080,
		DefaultPriority: "Medium",
		IssueStates:     []string{"Todo", "InProgress", "Done"},
		IssueTypes:      []string{"Feature", "Bug", "Chore"},
		IssuePriorities: []string{"Low", "Medium", "High", "Critical"},
		Tags:            []string{"*"},
		CustomFields:    []string{"*"},

		ScanEnable:          true,
		ScanSignalWords:     true,
		ScanTicketWords:     true,
		ScanStripAttributes: false,

		AutoSetReporter:    true,
		AutoAssignOnStatus: false,

		SprintNotificationsEnabled: true,
	}
}

// defaultProvenance stamps every known field as built-in before layers apply.
func defaultProvenance() map[string]Source {
	prov := make(map[string]Source, len(allFieldKeys))
	for _, key := range allFieldKeys {
		prov[key] = SourceDefault
	}
	return prov
}

// allFieldKeys lists every provenance-tracked field in canonical dotted form.
var allFieldKeys = []string{
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
	"branch.status_aliases",
	"branch.type_aliases",
	"branch.priority_aliases",
	"sprint.defaults",
	"sprint.notifications.enabled",
	"project.name",
}
