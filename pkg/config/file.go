package config

import (
	"strings"
)

// fileConfig mirrors the canonical nested on-disk form. Pointer leaves make
// "unset" distinguishable from zero so layers only override what they name.
type fileConfig struct {
	Server  *serverSection  `yaml:"server,omitempty"`
	Default *defaultSection `yaml:"default,omitempty"`
	Issue   *issueSection   `yaml:"issue,omitempty"`
	Custom  *customSection  `yaml:"custom,omitempty"`
	Scan    *scanSection    `yaml:"scan,omitempty"`
	Auto    *autoSection    `yaml:"auto,omitempty"`
	Branch  *branchSection  `yaml:"branch,omitempty"`
	Sprint  *sprintSection  `yaml:"sprint,omitempty"`
	Project *projectSection `yaml:"project,omitempty"`
}

type serverSection struct {
	Port *int `yaml:"port,omitempty"`
}

type defaultSection struct {
	Project  *string `yaml:"project,omitempty"`
	Prefix   *string `yaml:"prefix,omitempty"`
	Assignee *string `yaml:"assignee,omitempty"`
	Reporter *string `yaml:"reporter,omitempty"`
	Priority *string `yaml:"priority,omitempty"`
	Status   *string `yaml:"status,omitempty"`
}

type issueSection struct {
	States     []string `yaml:"states,omitempty"`
	Types      []string `yaml:"types,omitempty"`
	Priorities []string `yaml:"priorities,omitempty"`
}

type customSection struct {
	Tags   []string `yaml:"tags,omitempty"`
	Fields []string `yaml:"fields,omitempty"`
}

type scanSection struct {
	Enable          *bool `yaml:"enable,omitempty"`
	SignalWords     *bool `yaml:"signal_words,omitempty"`
	TicketWords     *bool `yaml:"ticket_words,omitempty"`
	StripAttributes *bool `yaml:"strip_attributes,omitempty"`
}

type autoSection struct {
	SetReporter    *bool `yaml:"set_reporter,omitempty"`
	AssignOnStatus *bool `yaml:"assign_on_status,omitempty"`
}

type branchSection struct {
	StatusAliases   map[string]string `yaml:"status_aliases,omitempty"`
	TypeAliases     map[string]string `yaml:"type_aliases,omitempty"`
	PriorityAliases map[string]string `yaml:"priority_aliases,omitempty"`
}

type sprintSection struct {
	Defaults      *SprintDefaults      `yaml:"defaults,omitempty"`
	Notifications *notificationSection `yaml:"notifications,omitempty"`
}

type notificationSection struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

type projectSection struct {
	Name *string `yaml:"name,omitempty"`
}

// normalizeToken lowercases and strips separators, matching the vocabulary
// package's comparison rules without importing it (avoids a cycle).
func normalizeToken(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, s)
}

// expandDottedKeys rewrites flat keys like "default.project" into the nested
// map shape before strict decoding, so hand-written flat configs still load.
func expandDottedKeys(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		parts := strings.Split(key, ".")
		if len(parts) == 1 {
			out[key] = value
			continue
		}
		cursor := out
		for i, part := range parts {
			if i == len(parts)-1 {
				cursor[part] = value
				break
			}
			next, ok := cursor[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				cursor[part] = next
			}
			cursor = next
		}
	}
	return out
}
