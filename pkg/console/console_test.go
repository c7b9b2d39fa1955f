package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMessagesCarryPrefixText(t *testing.T) {
	assert.Contains(t, FormatSuccessMessage("saved"), "saved")
	assert.Contains(t, FormatErrorMessage("boom"), "boom")
	assert.Contains(t, FormatWarningMessage("careful"), "careful")
	assert.Contains(t, FormatInfoMessage("note"), "note")
}

func TestFormatErrorWithSuggestions(t *testing.T) {
	out := FormatErrorWithSuggestions("unknown field 'prio'", []string{"priority"})
	assert.Contains(t, out, "unknown field 'prio'")
	assert.Contains(t, out, "Suggestions:")
	assert.Contains(t, out, "priority")
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(TableConfig{
		Headers: []string{"ID", "Title"},
		Rows:    [][]string{{"TEST-1", "First task"}},
		Title:   "Tasks",
	})
	assert.Contains(t, out, "TEST-1")
	assert.Contains(t, out, "First task")
	assert.True(t, strings.Contains(out, "Tasks"))
}

func TestRenderTableNoHeaders(t *testing.T) {
	assert.Equal(t, "", RenderTable(TableConfig{}))
}
