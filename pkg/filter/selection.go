package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/vocabulary"
)

// typedWhereKeys are the --select-where keys that route into the filter's
// typed slots instead of custom fields.
var typedWhereKeys = []string{"status", "priority", "type", "task_type", "tag", "project", "sprint", "assignee", "text"}

// ApplyWhere folds key=value pairs into the filter. Keys declared as custom
// fields (or covered by the wildcard) become custom-field constraints;
// typed keys fill the matching slot; anything else fails with the nearest
// known key as a suggestion.
func (f *TaskListFilter) ApplyWhere(pairs []string, cfg *config.Resolved) error {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" || value == "" {
			return fmt.Errorf("invalid --select-where %q (expected key=value)", pair)
		}

		switch strings.ToLower(key) {
		case "status":
			f.Statuses = append(f.Statuses, value)
		case "priority":
			f.Priorities = append(f.Priorities, value)
		case "type", "task_type":
			f.TaskTypes = append(f.TaskTypes, value)
		case "tag":
			f.Tags = append(f.Tags, value)
		case "project":
			f.Project = value
		case "assignee":
			f.Assignee = value
		case "text":
			f.TextQuery = value
		case "sprint":
			id, err := strconv.Atoi(strings.TrimPrefix(value, "#"))
			if err != nil {
				return fmt.Errorf("invalid sprint reference %q in --select-where", value)
			}
			f.Sprints = append(f.Sprints, id)
		default:
			if isCustomField(key, cfg) {
				if f.CustomFields == nil {
					f.CustomFields = map[string][]string{}
				}
				f.CustomFields[key] = append(f.CustomFields[key], value)
				continue
			}
			return unknownWhereKey(key, cfg)
		}
	}
	return nil
}

func isCustomField(key string, cfg *config.Resolved) bool {
	for _, declared := range cfg.CustomFields {
		if declared == vocabulary.Wildcard {
			return vocabulary.CheckCustomFieldName(key) == nil
		}
		if vocabulary.Normalize(declared) == vocabulary.Normalize(key) {
			return true
		}
	}
	return false
}

func unknownWhereKey(key string, cfg *config.Resolved) error {
	known := append([]string(nil), typedWhereKeys...)
	for _, declared := range cfg.CustomFields {
		if declared != vocabulary.Wildcard {
			known = append(known, declared)
		}
	}
	msg := fmt.Sprintf("unknown --select-where key %q", key)
	if closest, distance := vocabulary.ClosestMatch(key, known); distance < len(key)/2+1 {
		msg += fmt.Sprintf(". Did you mean %q?", closest)
	}
	return fmt.Errorf("%s", msg)
}
