package server

import "net/http"

// openAPIDocument is the static API description served at /api/openapi.json.
// It is maintained by hand alongside the handlers; generation is out of scope.
const openAPIDocument = `{
  "openapi": "3.0.3",
  "info": {
    "title": "lotar API",
    "description": "Local-first task and sprint tracker over YAML files.",
    "version": "1.0.0"
  },
  "paths": {
    "/api/tasks/add": {"post": {"summary": "Create a task", "responses": {"200": {"description": "Created task"}}}},
    "/api/tasks/list": {"get": {"summary": "List tasks", "parameters": [
      {"name": "project", "in": "query", "schema": {"type": "string"}},
      {"name": "status", "in": "query", "schema": {"type": "string"}},
      {"name": "priority", "in": "query", "schema": {"type": "string"}},
      {"name": "type", "in": "query", "schema": {"type": "string"}},
      {"name": "tags", "in": "query", "schema": {"type": "string"}},
      {"name": "assignee", "in": "query", "schema": {"type": "string"}},
      {"name": "sprint", "in": "query", "schema": {"type": "string"}},
      {"name": "q", "in": "query", "schema": {"type": "string"}},
      {"name": "limit", "in": "query", "schema": {"type": "integer"}},
      {"name": "offset", "in": "query", "schema": {"type": "integer"}}
    ], "responses": {"200": {"description": "Matching tasks"}}}},
    "/api/tasks/get": {"get": {"summary": "Fetch one task", "responses": {"200": {"description": "Task"}, "404": {"description": "Not found"}}}},
    "/api/tasks/update": {"post": {"summary": "Patch a task", "responses": {"200": {"description": "Updated task"}}}},
    "/api/tasks/delete": {"post": {"summary": "Delete a task", "responses": {"200": {"description": "Deletion result"}}}},
    "/api/tasks/comment": {"post": {"summary": "Add a comment", "responses": {"200": {"description": "Task and comment index"}}}},
    "/api/tasks/comment/update": {"post": {"summary": "Edit a comment", "responses": {"200": {"description": "Updated task"}}}},
    "/api/tasks/status": {"post": {"summary": "Set task status", "responses": {"200": {"description": "Updated task"}}}},
    "/api/sprints/list": {"get": {"summary": "List sprints with derived state", "responses": {"200": {"description": "Sprints"}}}},
    "/api/sprints/create": {"post": {"summary": "Create a sprint", "responses": {"200": {"description": "Created sprint"}}}},
    "/api/sprints/add": {"post": {"summary": "Assign tasks to a sprint", "responses": {"200": {"description": "Assignment outcome"}}}},
    "/api/sprints/move": {"post": {"summary": "Move tasks between sprints", "responses": {"200": {"description": "Assignment outcome"}}}},
    "/api/sprints/remove": {"post": {"summary": "Remove tasks from a sprint", "responses": {"200": {"description": "Assignment outcome"}}}},
    "/api/sprints/delete": {"post": {"summary": "Delete a sprint", "responses": {"200": {"description": "Deletion result"}}}},
    "/api/sprints/backlog": {"get": {"summary": "Tasks in no sprint", "responses": {"200": {"description": "Backlog"}}}},
    "/api/sprints/summary": {"get": {"summary": "Sprint summary report", "responses": {"200": {"description": "Summary"}}}},
    "/api/sprints/review": {"get": {"summary": "Sprint review report", "responses": {"200": {"description": "Review"}}}},
    "/api/sprints/stats": {"get": {"summary": "Sprint stats with timeline", "responses": {"200": {"description": "Stats"}}}},
    "/api/sprints/burndown": {"get": {"summary": "Sprint burndown series", "responses": {"200": {"description": "Burndown"}}}},
    "/api/sprints/velocity": {"get": {"summary": "Trailing velocity report", "responses": {"200": {"description": "Velocity"}}}},
    "/api/config/show": {"get": {"summary": "Resolved configuration", "responses": {"200": {"description": "Config"}}}},
    "/api/config/set": {"post": {"summary": "Set a config field", "responses": {"200": {"description": "Set result"}}}},
    "/api/events": {"get": {"summary": "Server-sent events stream", "responses": {"200": {"description": "text/event-stream"}}}}
  }
}`

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(openAPIDocument))
}
