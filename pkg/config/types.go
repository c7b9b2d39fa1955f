// Package config loads, merges, and persists the layered lotar configuration.
// Precedence, highest first: environment overrides, home config, workspace
// global, project file, built-in defaults. Project files override the
// workspace for project-scoped concerns (vocabulary, defaults, project name)
// when a project view is requested.
package config

// Source labels where a resolved field's value came from.
type Source string

const (
	SourceEnv     Source = "env"
	SourceHome    Source = "home"
	SourceGlobal  Source = "global"
	SourceProject Source = "project"
	SourceDefault Source = "default"
)

// SprintDefaults seeds new sprints with plan values the user did not set.
type SprintDefaults struct {
	Length         string  `yaml:"length,omitempty" json:"length,omitempty"`
	CapacityPoints float64 `yaml:"capacity_points,omitempty" json:"capacity_points,omitempty"`
	CapacityHours  float64 `yaml:"capacity_hours,omitempty" json:"capacity_hours,omitempty"`
	OverdueAfter   string  `yaml:"overdue_after,omitempty" json:"overdue_after,omitempty"`
}

// Config is the fully resolved configuration view consumed by the services.
type Config struct {
	ServerPort      int
	DefaultProject  string
	DefaultPrefix   string
	DefaultAssignee string
	DefaultReporter string
	DefaultPriority string
	DefaultStatus   string

	IssueStates     []string
	IssueTypes      []string
	IssuePriorities []string

	Tags         []string
	CustomFields []string

	ScanEnable          bool
	ScanSignalWords     bool
	ScanTicketWords     bool
	ScanStripAttributes bool

	AutoSetReporter    bool
	AutoAssignOnStatus bool

	BranchStatusAliases   map[string]string
	BranchTypeAliases     map[string]string
	BranchPriorityAliases map[string]string

	SprintDefaults             SprintDefaults
	SprintNotificationsEnabled bool

	// ProjectName is only populated on project-scoped views.
	ProjectName string
}

// Resolved couples the merged configuration with per-field provenance.
// Provenance keys use the canonical dotted form (e.g. "default.priority").
type Resolved struct {
	Config
	Provenance map[string]Source
}

// DoneStatuses returns the statuses treated as terminal: the last element of
// issue_states, any state literally named done/completed/closed, and any
// state a branch alias maps onto one of those.
func (c *Config) DoneStatuses() []string {
	seen := map[string]bool{}
	var done []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			done = append(done, s)
		}
	}

	if n := len(c.IssueStates); n > 0 {
		add(c.IssueStates[n-1])
	}
	for _, state := range c.IssueStates {
		switch normalizeToken(state) {
		case "done", "completed", "closed":
			add(state)
		}
	}
	for _, target := range c.BranchStatusAliases {
		for _, d := range done {
			if normalizeToken(target) == normalizeToken(d) {
				add(target)
			}
		}
	}
	return done
}

// IsDone reports whether status is one of the terminal statuses.
func (c *Config) IsDone(status string) bool {
	for _, d := range c.DoneStatuses() {
		if normalizeToken(d) == normalizeToken(status) {
			return true
		}
	}
	return false
}

// ResolveBranchAlias looks name up in an alias map case- and
// separator-insensitively, returning the mapped value when present.
func ResolveBranchAlias(aliases map[string]string, name string) (string, bool) {
	want := normalizeToken(name)
	for alias, target := range aliases {
		if normalizeToken(alias) == want {
			return target, true
		}
	}
	return "", false
}
