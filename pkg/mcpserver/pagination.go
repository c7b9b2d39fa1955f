package mcpserver

import (
	"strconv"

	"github.com/localtaskrepo/lotar/pkg/constants"
	"github.com/localtaskrepo/lotar/pkg/output"
)

// page applies cursor pagination over a result slice. The cursor is an
// opaque stringified offset; limit is clamped into [1, max].
func page[T any](items []T, limit int, cursor string, max int) ([]T, map[string]any, error) {
	if max <= 0 {
		max = constants.MaxListLimit
	}
	if limit <= 0 {
		limit = max
	}
	if limit > max {
		limit = max
	}

	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return nil, nil, &output.CommandError{Kind: output.KindInvalidArgument, Message: "invalid cursor " + cursor}
		}
		offset = parsed
	}

	total := len(items)
	if offset > total {
		offset = total
	}
	slice := items[offset:]
	hasMore := false
	if len(slice) > limit {
		slice = slice[:limit]
		hasMore = true
	}

	meta := map[string]any{
		"count":   len(slice),
		"total":   total,
		"hasMore": hasMore,
	}
	if hasMore {
		meta["nextCursor"] = strconv.Itoa(offset + len(slice))
	}
	return slice, meta, nil
}
