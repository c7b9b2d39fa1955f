package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/localtaskrepo/lotar/pkg/events"
	"github.com/localtaskrepo/lotar/pkg/filter"
	"github.com/localtaskrepo/lotar/pkg/identity"
	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/task"
)

type taskAddRequest struct {
	Project      string         `json:"project,omitempty"`
	Title        string         `json:"title"`
	Subtitle     string         `json:"subtitle,omitempty"`
	Description  string         `json:"description,omitempty"`
	Status       string         `json:"status,omitempty"`
	Priority     string         `json:"priority,omitempty"`
	TaskType     string         `json:"task_type,omitempty"`
	Reporter     string         `json:"reporter,omitempty"`
	Assignee     string         `json:"assignee,omitempty"`
	DueDate      string         `json:"due_date,omitempty"`
	Effort       string         `json:"effort,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

func (s *Server) handleTaskAdd(w http.ResponseWriter, r *http.Request) {
	var req taskAddRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	project := req.Project
	if project == "" {
		var err error
		if project, err = s.defaultProject(); err != nil {
			writeError(w, err)
			return
		}
	} else {
		var err error
		if project, err = s.ws.ResolveProjectForCreate(project); err != nil {
			writeError(w, err)
			return
		}
	}

	created, err := s.tasks.Create(task.CreateRequest{
		Project:      project,
		Title:        req.Title,
		Subtitle:     req.Subtitle,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		TaskType:     req.TaskType,
		Reporter:     req.Reporter,
		Assignee:     req.Assignee,
		DueDate:      req.DueDate,
		Effort:       req.Effort,
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.bus.Publish(events.Event{
		Kind:        events.KindTaskCreated,
		ID:          created.ID,
		Project:     created.Project(),
		TriggeredBy: s.triggeredBy(),
	})
	writeData(w, created, nil)
}

type taskListResponse struct {
	Tasks []*task.Task `json:"tasks"`
	Count int          `json:"count"`
	Total int          `json:"total"`
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	f := &filter.TaskListFilter{
		Statuses:   splitCSV(query.Get("status")),
		Priorities: splitCSV(query.Get("priority")),
		TaskTypes:  splitCSV(query.Get("type")),
		Project:    query.Get("project"),
		Assignee:   identity.ResolveMeAlias(query.Get("assignee"), s.ws),
		Tags:       splitCSV(query.Get("tags")),
		TextQuery:  query.Get("q"),
	}
	for _, raw := range splitCSV(query.Get("sprint")) {
		id, err := strconv.Atoi(strings.TrimPrefix(raw, "#"))
		if err != nil {
			writeError(w, &output.CommandError{Kind: output.KindInvalidArgument, Message: "invalid sprint filter " + raw})
			return
		}
		f.Sprints = append(f.Sprints, id)
	}

	found, err := s.tasks.Search(f.Project, f.Matches)
	if err != nil {
		writeError(w, err)
		return
	}

	total := len(found)
	offset := intQuery(query.Get("offset"), 0)
	limit := intQuery(query.Get("limit"), 0)
	if offset > total {
		offset = total
	}
	page := found[offset:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}
	if page == nil {
		page = []*task.Task{}
	}

	writeData(w, taskListResponse{Tasks: page, Count: len(page), Total: total}, nil)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, &output.CommandError{Kind: output.KindInvalidArgument, Message: "id is required"})
		return
	}
	t, err := s.tasks.Get(id, r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, t, nil)
}

type taskUpdateRequest struct {
	ID           string         `json:"id"`
	Project      string         `json:"project,omitempty"`
	Title        *string        `json:"title,omitempty"`
	Subtitle     *string        `json:"subtitle,omitempty"`
	Description  *string        `json:"description,omitempty"`
	Status       *string        `json:"status,omitempty"`
	Priority     *string        `json:"priority,omitempty"`
	TaskType     *string        `json:"task_type,omitempty"`
	Reporter     *string        `json:"reporter,omitempty"`
	Assignee     *string        `json:"assignee,omitempty"`
	DueDate      *string        `json:"due_date,omitempty"`
	Effort       *string        `json:"effort,omitempty"`
	Tags         *[]string      `json:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	var req taskUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.tasks.Update(req.ID, req.Project, task.Patch{
		Title:        req.Title,
		Subtitle:     req.Subtitle,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		TaskType:     req.TaskType,
		Reporter:     req.Reporter,
		Assignee:     req.Assignee,
		DueDate:      req.DueDate,
		Effort:       req.Effort,
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.bus.Publish(events.Event{
		Kind:        events.KindTaskUpdated,
		ID:          updated.ID,
		Project:     updated.Project(),
		TriggeredBy: s.triggeredBy(),
	})
	writeData(w, updated, nil)
}

type taskIDRequest struct {
	ID      string `json:"id"`
	Project string `json:"project,omitempty"`
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	var req taskIDRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	removed, err := s.tasks.Delete(req.ID, req.Project)
	if err != nil {
		writeError(w, err)
		return
	}
	if !removed {
		writeError(w, &task.NotFoundError{ID: req.ID})
		return
	}

	prefix, _, _ := task.ParseID(req.ID)
	if prefix == "" {
		prefix = req.Project
	}
	s.bus.Publish(events.Event{
		Kind:        events.KindTaskDeleted,
		ID:          req.ID,
		Project:     prefix,
		TriggeredBy: s.triggeredBy(),
	})
	writeData(w, map[string]any{"deleted": true, "id": req.ID}, nil)
}

type taskCommentRequest struct {
	ID      string `json:"id"`
	Project string `json:"project,omitempty"`
	Author  string `json:"author,omitempty"`
	Text    string `json:"text"`
}

func (s *Server) handleTaskComment(w http.ResponseWriter, r *http.Request) {
	var req taskCommentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, index, err := s.tasks.AddComment(req.ID, req.Project, req.Author, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	s.bus.Publish(events.Event{
		Kind:        events.KindTaskUpdated,
		ID:          updated.ID,
		Project:     updated.Project(),
		TriggeredBy: s.triggeredBy(),
	})
	writeData(w, map[string]any{"task": updated, "index": index}, nil)
}

type taskCommentUpdateRequest struct {
	ID      string `json:"id"`
	Project string `json:"project,omitempty"`
	Index   int    `json:"index"`
	Text    string `json:"text"`
}

func (s *Server) handleTaskCommentUpdate(w http.ResponseWriter, r *http.Request) {
	var req taskCommentUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.tasks.UpdateComment(req.ID, req.Project, req.Index, req.Text, "")
	if err != nil {
		writeError(w, err)
		return
	}

	s.bus.Publish(events.Event{
		Kind:        events.KindTaskUpdated,
		ID:          updated.ID,
		Project:     updated.Project(),
		TriggeredBy: s.triggeredBy(),
	})
	writeData(w, updated, nil)
}

type taskStatusRequest struct {
	ID      string `json:"id"`
	Project string `json:"project,omitempty"`
	Status  string `json:"status"`
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req taskStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.tasks.SetStatus(req.ID, req.Project, req.Status, "")
	if err != nil {
		writeError(w, err)
		return
	}

	s.bus.Publish(events.Event{
		Kind:        events.KindTaskUpdated,
		ID:          updated.ID,
		Project:     updated.Project(),
		TriggeredBy: s.triggeredBy(),
	})
	writeData(w, updated, nil)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
		return n
	}
	return fallback
}
