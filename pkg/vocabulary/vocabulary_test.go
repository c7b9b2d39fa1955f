package vocabulary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var statuses = []string{"Todo", "InProgress", "Done"}

func TestParseEnumCanonicalCasing(t *testing.T) {
	for _, raw := range []string{"todo", "TODO", "ToDo"} {
		got, err := ParseEnum("status", raw, statuses)
		require.NoError(t, err, raw)
		assert.Equal(t, "Todo", got)
	}
}

func TestParseEnumSeparatorInsensitive(t *testing.T) {
	for _, raw := range []string{"in-progress", "in_progress", "in progress", "INPROGRESS"} {
		got, err := ParseEnum("status", raw, statuses)
		require.NoError(t, err, raw)
		assert.Equal(t, "InProgress", got)
	}
}

func TestParseEnumSuggestion(t *testing.T) {
	_, err := ParseEnum("status", "Dine", statuses)
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "Done", verr.Suggestion)
	assert.Equal(t, statuses, verr.Allowed)
}

func TestParseEnumNoSuggestionWhenTooFar(t *testing.T) {
	_, err := ParseEnum("status", "xy", statuses)
	require.Error(t, err)
	verr := err.(*ValidationError)
	assert.Empty(t, verr.Suggestion)
}

func TestParseEnumEmpty(t *testing.T) {
	_, err := ParseEnum("status", "", statuses)
	require.Error(t, err)
}

func TestCheckListValueWildcard(t *testing.T) {
	got, err := CheckListValue("tag", "anything-goes", []string{Wildcard})
	require.NoError(t, err)
	assert.Equal(t, "anything-goes", got)
}

func TestCheckListValueStrict(t *testing.T) {
	got, err := CheckListValue("tag", "BACKEND", []string{"backend", "frontend"})
	require.NoError(t, err)
	assert.Equal(t, "backend", got)

	_, err = CheckListValue("tag", "ops", []string{"backend", "frontend"})
	require.Error(t, err)
}

func TestCheckCustomFieldNameReserved(t *testing.T) {
	assert.Error(t, CheckCustomFieldName("title"))
	assert.Error(t, CheckCustomFieldName("Due-Date"))
	assert.NoError(t, CheckCustomFieldName("team"))
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, LevenshteinDistance("done", "done"))
	assert.Equal(t, 1, LevenshteinDistance("done", "dine"))
	assert.Equal(t, 4, LevenshteinDistance("", "done"))
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
}
