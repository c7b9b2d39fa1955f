package config

import "os"

// Templates are the built-in workspace config seeds for config init.
// Each renders through the same canonical writer as config set.

// TemplateNames lists the built-in templates in display order.
var TemplateNames = []string{"default", "agile", "kanban"}

// Template returns the named built-in template layer, or nil when unknown.
func Template(name string) *fileConfig {
	switch name {
	case "default":
		return &fileConfig{}
	case "agile":
		states := []string{"Backlog", "Todo", "InProgress", "Review", "Done"}
		types := []string{"Epic", "Story", "Task", "Bug", "Spike"}
		length := "2w"
		return &fileConfig{
			Issue: &issueSection{States: states, Types: types},
			Sprint: &sprintSection{
				Defaults: &SprintDefaults{Length: length},
			},
		}
	case "kanban":
		states := []string{"Backlog", "Ready", "Doing", "Blocked", "Done"}
		return &fileConfig{
			Issue: &issueSection{States: states},
		}
	}
	return nil
}

// InitWorkspace writes a template as the workspace global config.
// Refuses to overwrite an existing config unless force is set.
func InitWorkspace(path string, templateName string, force bool) error {
	fc := Template(templateName)
	if fc == nil {
		return &InvalidValueError{Field: "template", Reason: "unknown template " + templateName}
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return &InvalidValueError{Field: "config", Reason: path + " already exists (use --force to overwrite)"}
		}
	}
	return writeLayer(path, fc)
}
