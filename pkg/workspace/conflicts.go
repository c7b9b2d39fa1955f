package workspace

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// ConflictError reports a prefix or project-name collision detected on
// project creation. Alternatives, when present, are free prefixes the
// caller can offer instead.
type ConflictError struct {
	Message      string
	Alternatives []string
}

func (e *ConflictError) Error() string { return e.Message }

// projectName reads the project.name value from a project's config file.
// Tolerant: a missing or malformed file yields "".
func (w Workspace) projectName(prefix string) string {
	data, err := os.ReadFile(w.ProjectConfigPath(prefix))
	if err != nil {
		return ""
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ""
	}
	if section, ok := raw["project"].(map[string]any); ok {
		if name, ok := section["name"].(string); ok {
			return name
		}
	}
	if name, ok := raw["project.name"].(string); ok {
		return name
	}
	return ""
}

// projectNames maps each existing prefix to its configured project name
// (empty when the project carries none).
func (w Workspace) projectNames() map[string]string {
	names := map[string]string{}
	prefixes, err := w.ListProjects()
	if err != nil {
		return names
	}
	for _, prefix := range prefixes {
		names[prefix] = w.projectName(prefix)
	}
	return names
}

// GenerateUniquePrefix derives a prefix from a free-form project name and
// enforces uniqueness against the workspace: the name may not equal an
// existing prefix, the generated prefix may not equal an existing project
// name, and a generated prefix already used by a differently-named project
// is a conflict (with numbered alternatives suggested).
func (w Workspace) GenerateUniquePrefix(name string) (string, error) {
	generated := GeneratePrefix(name)

	existing := w.projectNames()
	if len(existing) == 0 {
		return generated, nil
	}

	// The project name itself may not shadow an existing prefix.
	upperName := strings.ToUpper(name)
	if existingName, taken := existing[upperName]; taken && existingName != name {
		return "", &ConflictError{
			Message: fmt.Sprintf("cannot create project %q: a project with prefix %q already exists; project names cannot match existing prefixes", name, upperName),
		}
	}

	// The generated prefix may not shadow another project's name.
	for _, existingName := range existing {
		if existingName != "" && strings.EqualFold(generated, existingName) && !strings.EqualFold(name, existingName) {
			return "", &ConflictError{
				Message: fmt.Sprintf("cannot create project %q with prefix %q: the prefix conflicts with existing project name %q", name, generated, existingName),
			}
		}
	}

	if existingName, taken := existing[generated]; taken {
		if existingName == name {
			// Same project: reuse its prefix.
			return generated, nil
		}
		conflict := &ConflictError{
			Alternatives: w.suggestAlternatives(generated),
		}
		if existingName != "" {
			conflict.Message = fmt.Sprintf("cannot create project %q with prefix %q: the prefix is already used by project %q", name, generated, existingName)
		} else {
			conflict.Message = fmt.Sprintf("cannot create project %q with prefix %q: the prefix is already in use", name, generated)
		}
		return "", conflict
	}

	return generated, nil
}

// ValidateNewPrefix guards creating a project directory under an explicit
// prefix: the prefix may not collide with another project's directory
// (case-insensitively) or configured project name.
func (w Workspace) ValidateNewPrefix(prefix string) error {
	for existingPrefix, existingName := range w.projectNames() {
		if existingPrefix != prefix && strings.EqualFold(existingPrefix, prefix) {
			return &ConflictError{
				Message:      fmt.Sprintf("prefix %q collides with existing project directory %q", prefix, existingPrefix),
				Alternatives: w.suggestAlternatives(prefix),
			}
		}
		if existingName != "" && strings.EqualFold(prefix, existingName) {
			return &ConflictError{
				Message: fmt.Sprintf("prefix %q conflicts with existing project name %q", prefix, existingName),
			}
		}
	}
	return nil
}

// suggestAlternatives proposes up to three free prefixes near base:
// numbered variants first, then a few character suffixes.
func (w Workspace) suggestAlternatives(base string) []string {
	existing := map[string]bool{}
	prefixes, err := w.ListProjects()
	if err == nil {
		for _, prefix := range prefixes {
			existing[prefix] = true
		}
	}

	var suggestions []string
	for i := 1; i <= 9 && len(suggestions) < 3; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		if ValidPrefix(candidate) && !existing[candidate] {
			suggestions = append(suggestions, candidate)
		}
	}
	for _, suffix := range []string{"X", "V2", "NEW"} {
		if len(suggestions) >= 3 {
			break
		}
		candidate := base + suffix
		if ValidPrefix(candidate) && !existing[candidate] {
			suggestions = append(suggestions, candidate)
		}
	}
	return suggestions
}

// ResolveProjectForCreate resolves input for a write operation: an exact
// prefix directory or a recorded project name passes through to its
// prefix; anything else goes through unique-prefix generation, so a new
// name collapsing onto a differently-named project's prefix is a
// ConflictError rather than a silent reuse. A generated prefix whose
// project recorded no name is treated as that project.
func (w Workspace) ResolveProjectForCreate(input string) (string, error) {
	if info, err := os.Stat(w.ProjectDir(input)); err == nil && info.IsDir() {
		return input, nil
	}

	for prefix, name := range w.projectNames() {
		if name != "" && name == input {
			return prefix, nil
		}
	}

	generated := GeneratePrefix(input)
	if info, err := os.Stat(w.ProjectDir(generated)); err == nil && info.IsDir() {
		name := w.projectName(generated)
		if name == "" || name == input {
			return generated, nil
		}
		return "", &ConflictError{
			Message:      fmt.Sprintf("cannot create project %q with prefix %q: the prefix is already used by project %q", input, generated, name),
			Alternatives: w.suggestAlternatives(generated),
		}
	}

	return w.GenerateUniquePrefix(input)
}

// ResolveProjectInput accepts either a prefix or a full project name and
// returns the prefix storage should use. An existing directory wins; then
// a project_name match; then the name's generated prefix (which is also
// the answer for a project that does not exist yet).
func (w Workspace) ResolveProjectInput(input string) string {
	if info, err := os.Stat(w.ProjectDir(input)); err == nil && info.IsDir() {
		return input
	}

	for prefix, name := range w.projectNames() {
		if name != "" && name == input {
			return prefix
		}
	}

	generated := GeneratePrefix(input)
	if info, err := os.Stat(w.ProjectDir(generated)); err == nil && info.IsDir() {
		return generated
	}
	return generated
}
