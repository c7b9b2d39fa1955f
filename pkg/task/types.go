// Package task implements the task model and its on-disk store: one YAML
// file per task under the project prefix directory, canonical key order,
// tolerant reads, and an append-only history log.
package task

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp wraps time.Time with the canonical RFC3339 UTC rendering used
// everywhere a task or sprint file stores a time.
type Timestamp struct {
	time.Time
}

// Now returns the current instant truncated to whole seconds so canonical
// writes round-trip byte-identically.
func Now() Timestamp {
	return Timestamp{time.Now().UTC().Truncate(time.Second)}
}

// At wraps an explicit time in a Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

// MarshalYAML renders the canonical RFC3339 UTC form.
func (t Timestamp) MarshalYAML() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(t.UTC().Format(time.RFC3339))), nil
}

// UnmarshalYAML accepts RFC3339 with offset, date-time without zone, and
// bare dates, so hand-edited files still load.
func (t *Timestamp) UnmarshalYAML(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"'`)
	if raw == "" || raw == "null" {
		*t = Timestamp{}
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = Timestamp{parsed.UTC()}
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

// IsZero lets omitempty elide unset timestamps.
func (t Timestamp) IsZero() bool {
	return t.Time.IsZero()
}

// Comment is one entry in a task's ordered comment list. The 0-based index
// is stable for the life of the file.
type Comment struct {
	Author string    `yaml:"author" json:"author"`
	Date   Timestamp `yaml:"date" json:"date"`
	Text   string    `yaml:"text" json:"text"`
}

// Reference points at a link, a file, or a code location (path#line[-line]).
type Reference struct {
	Link string `yaml:"link,omitempty" json:"link,omitempty"`
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	Code string `yaml:"code,omitempty" json:"code,omitempty"`
}

// Relationships holds the bilateral task links. Writers maintain the
// symmetric pair on the other side within the same logical operation.
type Relationships struct {
	Blocks    []string `yaml:"blocks,omitempty" json:"blocks,omitempty"`
	BlockedBy []string `yaml:"blocked_by,omitempty" json:"blocked_by,omitempty"`
	Relates   []string `yaml:"relates,omitempty" json:"relates,omitempty"`
	Parent    string   `yaml:"parent,omitempty" json:"parent,omitempty"`
	Children  []string `yaml:"children,omitempty" json:"children,omitempty"`
}

// Empty reports whether no relationship is set; writers drop the block
// from the file when it is.
func (r *Relationships) Empty() bool {
	return r == nil || (len(r.Blocks) == 0 && len(r.BlockedBy) == 0 && len(r.Relates) == 0 &&
		r.Parent == "" && len(r.Children) == 0)
}

// HistoryChange records one field transition inside a history entry.
type HistoryChange struct {
	Field string `yaml:"field" json:"field"`
	Old   string `yaml:"old,omitempty" json:"old,omitempty"`
	New   string `yaml:"new,omitempty" json:"new,omitempty"`
}

// HistoryEntry is one append-only change record.
type HistoryEntry struct {
	Date    Timestamp       `yaml:"date" json:"date"`
	Actor   string          `yaml:"actor,omitempty" json:"actor,omitempty"`
	Changes []HistoryChange `yaml:"changes" json:"changes"`
}

// Task is the canonical on-disk task shape. Field order here is the
// canonical YAML key order.
type Task struct {
	ID            string         `yaml:"id" json:"id"`
	Title         string         `yaml:"title" json:"title"`
	Subtitle      string         `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	Description   string         `yaml:"description,omitempty" json:"description,omitempty"`
	Status        string         `yaml:"status" json:"status"`
	Priority      string         `yaml:"priority" json:"priority"`
	TaskType      string         `yaml:"task_type" json:"task_type"`
	Reporter      string         `yaml:"reporter,omitempty" json:"reporter,omitempty"`
	Assignee      string         `yaml:"assignee,omitempty" json:"assignee,omitempty"`
	DueDate       string         `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	Effort        string         `yaml:"effort,omitempty" json:"effort,omitempty"`
	Tags          []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Relationships *Relationships `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	Comments      []Comment      `yaml:"comments,omitempty" json:"comments,omitempty"`
	References    []Reference    `yaml:"references,omitempty" json:"references,omitempty"`
	Sprints       []int          `yaml:"sprints,omitempty" json:"sprints,omitempty"`
	CustomFields  map[string]any `yaml:"custom_fields,omitempty" json:"custom_fields,omitempty"`
	History       []HistoryEntry `yaml:"history,omitempty" json:"history,omitempty"`
	Created       Timestamp      `yaml:"created" json:"created"`
	Modified      Timestamp      `yaml:"modified" json:"modified"`

	// Extra carries unknown keys found on read so hand-edits survive the
	// canonical rewrite. Re-emitted after the known fields, sorted by key.
	Extra map[string]any `yaml:"-" json:"-"`
}

// Project returns the prefix component of the task's ID.
func (t *Task) Project() string {
	prefix, _, _ := ParseID(t.ID)
	return prefix
}

// InSprint reports whether the task's sprint mirror contains id.
func (t *Task) InSprint(id int) bool {
	for _, s := range t.Sprints {
		if s == id {
			return true
		}
	}
	return false
}

// ParseID splits <PREFIX>-<N> into its parts.
func ParseID(id string) (prefix string, number int, ok bool) {
	idx := strings.LastIndex(id, "-")
	if idx <= 0 || idx == len(id)-1 {
		return "", 0, false
	}
	number, err := strconv.Atoi(id[idx+1:])
	if err != nil || number < 1 {
		return "", 0, false
	}
	return id[:idx], number, true
}

// FormatID builds a task ID from its parts.
func FormatID(prefix string, number int) string {
	return fmt.Sprintf("%s-%d", prefix, number)
}
