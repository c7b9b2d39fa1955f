// Package metrics computes sprint reports: summaries, reviews, stats,
// burndown series, and velocity. Every function here is pure over the
// snapshots it is handed; no disk IO happens during computation.
package metrics

import (
	"strconv"
	"strings"

	"github.com/localtaskrepo/lotar/pkg/task"
)

// Effort is a parsed task effort: either story points or a time amount.
type Effort struct {
	Points float64
	Hours  float64
}

// ParseEffort interprets a task effort string. A bare number is story
// points; h/d/w suffixed amounts are time (days are 8 working hours,
// weeks 5 working days). Returns false for anything unparseable.
func ParseEffort(raw string) (Effort, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return Effort{}, false
	}

	if points, err := strconv.ParseFloat(raw, 64); err == nil {
		if points < 0 {
			return Effort{}, false
		}
		return Effort{Points: points}, true
	}

	unit := raw[len(raw)-1]
	value, err := strconv.ParseFloat(strings.TrimSpace(raw[:len(raw)-1]), 64)
	if err != nil || value < 0 {
		return Effort{}, false
	}
	switch unit {
	case 'h':
		return Effort{Hours: value}, true
	case 'd':
		return Effort{Hours: value * 8}, true
	case 'w':
		return Effort{Hours: value * 40}, true
	}
	return Effort{}, false
}

// CapHours returns member copies whose hour-denominated efforts exceed
// capHours clamped down to it. The caller reads LOTAR_STATS_EFFORT_CAP and
// passes it in so the computation itself stays environment-free.
// capHours <= 0 disables the cap.
func CapHours(members []*task.Task, capHours float64) []*task.Task {
	if capHours <= 0 {
		return members
	}
	out := make([]*task.Task, 0, len(members))
	for _, t := range members {
		if effort, ok := ParseEffort(t.Effort); ok && effort.Hours > capHours {
			capped := *t
			capped.Effort = strconv.FormatFloat(capHours, 'f', -1, 64) + "h"
			out = append(out, &capped)
			continue
		}
		out = append(out, t)
	}
	return out
}
