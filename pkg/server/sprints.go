package server

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/localtaskrepo/lotar/pkg/constants"
	"github.com/localtaskrepo/lotar/pkg/events"
	"github.com/localtaskrepo/lotar/pkg/metrics"
	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
)

// sprintView is the list/report shape: the record plus its derived state.
type sprintView struct {
	ID       int                    `json:"id"`
	Label    string                 `json:"label"`
	Sprint   *sprint.Sprint         `json:"sprint"`
	Status   sprint.LifecycleStatus `json:"status"`
	Warnings []sprint.Warning       `json:"warnings,omitempty"`
}

func (s *Server) sprintViews(records []*sprint.Record, now time.Time) []sprintView {
	views := make([]sprintView, 0, len(records))
	for _, record := range records {
		views = append(views, sprintView{
			ID:       record.ID,
			Label:    sprint.DisplayName(record),
			Sprint:   record.Sprint,
			Status:   sprint.DeriveStatus(record.Sprint, now),
			Warnings: record.Warnings,
		})
	}
	return views
}

func (s *Server) handleSprintList(w http.ResponseWriter, r *http.Request) {
	records, err := s.sprints.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]any{"sprints": s.sprintViews(records, time.Now())}, nil)
}

type sprintCreateRequest struct {
	Label        string  `json:"label,omitempty"`
	Goal         string  `json:"goal,omitempty"`
	Length       string  `json:"length,omitempty"`
	StartsAt     string  `json:"starts_at,omitempty"`
	EndsAt       string  `json:"ends_at,omitempty"`
	Points       float64 `json:"capacity_points,omitempty"`
	Hours        float64 `json:"capacity_hours,omitempty"`
	OverdueAfter string  `json:"overdue_after,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

func (s *Server) handleSprintCreate(w http.ResponseWriter, r *http.Request) {
	var req sprintCreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	plan := sprint.Plan{
		Label:        req.Label,
		Goal:         req.Goal,
		Length:       req.Length,
		OverdueAfter: req.OverdueAfter,
		Notes:        req.Notes,
	}
	if req.StartsAt != "" {
		at, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			writeError(w, &output.CommandError{Kind: output.KindInvalidArgument, Message: "invalid starts_at: " + err.Error()})
			return
		}
		plan.StartsAt = task.At(at)
	}
	if req.EndsAt != "" {
		at, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			writeError(w, &output.CommandError{Kind: output.KindInvalidArgument, Message: "invalid ends_at: " + err.Error()})
			return
		}
		plan.EndsAt = task.At(at)
	}
	if req.Points > 0 || req.Hours > 0 {
		plan.Capacity = &sprint.Capacity{Points: req.Points, Hours: req.Hours}
	}

	resolved, err := s.resolvedConfig("")
	if err != nil {
		writeError(w, err)
		return
	}

	record, applied, err := s.sprints.Create(&sprint.Sprint{Plan: plan}, &resolved.SprintDefaults)
	if err != nil {
		writeError(w, err)
		return
	}

	s.bus.Publish(events.Event{Kind: events.KindSprintChanged, TriggeredBy: s.triggeredBy()})
	writeData(w, map[string]any{
		"sprint":           s.sprintViews([]*sprint.Record{record}, time.Now())[0],
		"applied_defaults": applied,
	}, warningStrings(record.Warnings))
}

type sprintTasksRequest struct {
	Sprint      string   `json:"sprint,omitempty"`
	Tasks       []string `json:"tasks"`
	Force       bool     `json:"force,omitempty"`
	AllowClosed bool     `json:"allow_closed,omitempty"`
}

func (s *Server) handleSprintAdd(w http.ResponseWriter, r *http.Request) {
	s.handleAssignment(w, r, "add")
}

func (s *Server) handleSprintMove(w http.ResponseWriter, r *http.Request) {
	s.handleAssignment(w, r, "move")
}

func (s *Server) handleSprintRemove(w http.ResponseWriter, r *http.Request) {
	s.handleAssignment(w, r, "remove")
}

func (s *Server) handleAssignment(w http.ResponseWriter, r *http.Request, mode string) {
	var req sprintTasksRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Tasks) == 0 {
		writeError(w, &output.CommandError{Kind: output.KindInvalidArgument, Message: "tasks is required"})
		return
	}

	records, err := s.sprints.List()
	if err != nil {
		writeError(w, err)
		return
	}

	var outcome *sprint.Outcome
	switch mode {
	case "add":
		outcome, err = sprint.AssignTasks(s.tasks, s.sprints, records, req.Tasks, req.Sprint, req.AllowClosed || req.Force, req.Force)
	case "move":
		outcome, err = sprint.MoveTasks(s.tasks, s.sprints, records, req.Tasks, req.Sprint, req.AllowClosed || req.Force)
	case "remove":
		outcome, err = sprint.RemoveTasks(s.tasks, s.sprints, records, req.Tasks, req.Sprint)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	s.bus.Publish(events.Event{Kind: events.KindSprintChanged, TriggeredBy: s.triggeredBy()})
	writeData(w, outcome, nil)
}

type sprintDeleteRequest struct {
	Sprint         int  `json:"sprint"`
	CleanupMissing bool `json:"cleanup_missing,omitempty"`
}

func (s *Server) handleSprintDelete(w http.ResponseWriter, r *http.Request) {
	var req sprintDeleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	existed, err := s.sprints.Delete(req.Sprint)
	if err != nil {
		writeError(w, err)
		return
	}
	if !existed {
		writeError(w, &sprint.NotFoundError{ID: req.Sprint})
		return
	}

	var cleanup *sprint.CleanupOutcome
	if req.CleanupMissing {
		records, err := s.sprints.List()
		if err != nil {
			writeError(w, err)
			return
		}
		cleanup, err = sprint.Cleanup(s.tasks, records, req.Sprint)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	s.bus.Publish(events.Event{Kind: events.KindSprintChanged, TriggeredBy: s.triggeredBy()})
	writeData(w, map[string]any{"deleted": true, "sprint": req.Sprint, "cleanup": cleanup}, nil)
}

func (s *Server) handleSprintBacklog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	records, err := s.sprints.List()
	if err != nil {
		writeError(w, err)
		return
	}

	limit := intQuery(query.Get("limit"), constants.DefaultBacklogLimit)
	backlog, err := sprint.FetchBacklog(s.tasks, records, sprint.BacklogOptions{
		Project:  query.Get("project"),
		Tags:     splitCSV(query.Get("tags")),
		Statuses: splitCSV(query.Get("status")),
		Assignee: query.Get("assignee"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]any{"tasks": backlog, "count": len(backlog)}, nil)
}

// reportContext loads the pieces every report endpoint needs.
func (s *Server) reportContext(r *http.Request) (*sprint.Record, []*task.Task, *output.CommandError) {
	query := r.URL.Query()
	records, err := s.sprints.List()
	if err != nil {
		return nil, nil, output.AsCommandError(err)
	}

	record, err := sprint.ResolveSprintRef(records, query.Get("sprint"), time.Now())
	if err != nil {
		return nil, nil, output.AsCommandError(err)
	}
	return record, s.membersOf(record), nil
}

// membersOf loads the member task snapshot for a sprint; missing tasks are
// skipped (the integrity pass reports them).
func (s *Server) membersOf(record *sprint.Record) []*task.Task {
	var members []*task.Task
	for _, ref := range record.Sprint.Tasks {
		if t, err := s.tasks.Get(ref.ID, ""); err == nil {
			members = append(members, t)
		}
	}
	return members
}

func (s *Server) handleSprintSummary(w http.ResponseWriter, r *http.Request) {
	record, members, cerr := s.reportContext(r)
	if cerr != nil {
		writeError(w, cerr)
		return
	}
	resolved, err := s.resolvedConfig("")
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, metrics.Summarize(record, members, &resolved.Config, time.Now()), nil)
}

func (s *Server) handleSprintReview(w http.ResponseWriter, r *http.Request) {
	record, members, cerr := s.reportContext(r)
	if cerr != nil {
		writeError(w, cerr)
		return
	}
	resolved, err := s.resolvedConfig("")
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, metrics.Reviewed(record, members, &resolved.Config, time.Now()), nil)
}

func (s *Server) handleSprintStats(w http.ResponseWriter, r *http.Request) {
	record, members, cerr := s.reportContext(r)
	if cerr != nil {
		writeError(w, cerr)
		return
	}
	resolved, err := s.resolvedConfig("")
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, metrics.Statistics(record, metrics.CapHours(members, statsEffortCap()), &resolved.Config, time.Now()), nil)
}

func (s *Server) handleSprintBurndown(w http.ResponseWriter, r *http.Request) {
	record, members, cerr := s.reportContext(r)
	if cerr != nil {
		writeError(w, cerr)
		return
	}
	resolved, err := s.resolvedConfig("")
	if err != nil {
		writeError(w, err)
		return
	}

	metric := metrics.Metric(r.URL.Query().Get("metric"))
	if metric == "" {
		metric = metrics.MetricTasks
	}
	report := metrics.ComputeBurndown(record, members, &resolved.Config, metric, time.Now())
	writeData(w, report, warningStrings(report.Warnings))
}

func (s *Server) handleSprintVelocity(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	records, err := s.sprints.List()
	if err != nil {
		writeError(w, err)
		return
	}
	resolved, err := s.resolvedConfig("")
	if err != nil {
		writeError(w, err)
		return
	}

	metric := metrics.Metric(query.Get("metric"))
	if metric == "" {
		metric = metrics.MetricTasks
	}
	limit := intQuery(query.Get("limit"), constants.DefaultVelocityWindow)
	includeActive := query.Get("include_active") == "1" || query.Get("include_active") == "true"

	report := metrics.ComputeVelocity(records, s.membersOf, &resolved.Config, metric, limit, includeActive, time.Now())
	writeData(w, report, nil)
}

// statsEffortCap reads the LOTAR_STATS_EFFORT_CAP hour cap for stats.
func statsEffortCap() float64 {
	raw := os.Getenv("LOTAR_STATS_EFFORT_CAP")
	if raw == "" {
		return 0
	}
	capHours, err := strconv.ParseFloat(raw, 64)
	if err != nil || capHours < 0 {
		return 0
	}
	return capHours
}

func warningStrings(warnings []sprint.Warning) []string {
	var out []string
	for _, w := range warnings {
		out = append(out, w.Message)
	}
	return out
}
