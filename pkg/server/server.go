// Package server hosts the REST and SSE surface over the task and sprint
// services. Configuration is re-resolved per request so edits are observed
// immediately; the filesystem is the only authoritative state.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/events"
	"github.com/localtaskrepo/lotar/pkg/identity"
	"github.com/localtaskrepo/lotar/pkg/logger"
	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/sprint"
	"github.com/localtaskrepo/lotar/pkg/task"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

var log = logger.New("server:http")

// Server wires the stores, the event bus, and the watcher behind the HTTP
// surface.
type Server struct {
	ws      workspace.Workspace
	tasks   *task.Store
	sprints *sprint.Store
	bus     *events.Bus

	httpServer *http.Server
	stopOnce   sync.Once
	stopCh     chan struct{}
}

// New builds a server over the workspace.
func New(ws workspace.Workspace) *Server {
	return &Server{
		ws:      ws,
		tasks:   task.NewStore(ws),
		sprints: sprint.NewStore(ws),
		bus:     events.NewBus(),
		stopCh:  make(chan struct{}),
	}
}

// Bus exposes the event bus (the CLI publishes through it when serving).
func (s *Server) Bus() *events.Bus {
	return s.bus
}

// Handler builds the routing table. Exposed for httptest-driven tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/tasks/add", s.handleTaskAdd)
	mux.HandleFunc("GET /api/tasks/list", s.handleTaskList)
	mux.HandleFunc("GET /api/tasks/get", s.handleTaskGet)
	mux.HandleFunc("POST /api/tasks/update", s.handleTaskUpdate)
	mux.HandleFunc("POST /api/tasks/delete", s.handleTaskDelete)
	mux.HandleFunc("POST /api/tasks/comment", s.handleTaskComment)
	mux.HandleFunc("POST /api/tasks/comment/update", s.handleTaskCommentUpdate)
	mux.HandleFunc("POST /api/tasks/status", s.handleTaskStatus)

	mux.HandleFunc("GET /api/sprints/list", s.handleSprintList)
	mux.HandleFunc("POST /api/sprints/create", s.handleSprintCreate)
	mux.HandleFunc("POST /api/sprints/add", s.handleSprintAdd)
	mux.HandleFunc("POST /api/sprints/remove", s.handleSprintRemove)
	mux.HandleFunc("POST /api/sprints/move", s.handleSprintMove)
	mux.HandleFunc("POST /api/sprints/delete", s.handleSprintDelete)
	mux.HandleFunc("GET /api/sprints/backlog", s.handleSprintBacklog)
	mux.HandleFunc("GET /api/sprints/summary", s.handleSprintSummary)
	mux.HandleFunc("GET /api/sprints/review", s.handleSprintReview)
	mux.HandleFunc("GET /api/sprints/stats", s.handleSprintStats)
	mux.HandleFunc("GET /api/sprints/burndown", s.handleSprintBurndown)
	mux.HandleFunc("GET /api/sprints/velocity", s.handleSprintVelocity)

	mux.HandleFunc("GET /api/config/show", s.handleConfigShow)
	mux.HandleFunc("POST /api/config/set", s.handleConfigSet)

	mux.HandleFunc("GET /api/openapi.json", s.handleOpenAPI)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	mux.HandleFunc("GET /__test/stop", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
		s.Stop()
	})

	return withCORS(mux)
}

// ListenAndServe starts the watcher and serves until Stop (or /__test/stop).
func (s *Server) ListenAndServe(port int) error {
	watcher, err := events.NewWatcher(s.ws, s.bus)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{Handler: s.Handler()}
	log.Printf("listening on %s", addr)

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(listener) }()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-s.stopCh:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// Stop signals the serve loop to shut down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// withCORS answers preflights permissively and stamps the CORS headers on
// every response.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeData emits the success envelope.
func writeData(w http.ResponseWriter, data any, warnings []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(output.Envelope{Data: data, Warnings: warnings})
}

// writeError classifies the error and emits the error envelope with the
// mapped status code.
func writeError(w http.ResponseWriter, err error) {
	ce := output.AsCommandError(err)
	payload := &output.ErrorPayload{Code: string(ce.Kind), Message: ce.Message, Data: ce.Details}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ce.HTTPStatus())
	_ = json.NewEncoder(w).Encode(output.Envelope{Error: payload})
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &output.CommandError{Kind: output.KindInvalidArgument, Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

// triggeredBy resolves the acting identity for event payloads.
func (s *Server) triggeredBy() string {
	return identity.ResolveCurrentUser(s.ws)
}

// resolvedConfig re-reads configuration for the request.
func (s *Server) resolvedConfig(project string) (*config.Resolved, error) {
	if project != "" {
		return config.GetProjectConfig(s.ws, project)
	}
	return config.LoadAndMerge(s.ws)
}

// defaultProject picks the project for calls that omit one.
func (s *Server) defaultProject() (string, error) {
	resolved, err := config.LoadAndMerge(s.ws)
	if err != nil {
		return "", err
	}
	if resolved.DefaultPrefix != "" {
		return resolved.DefaultPrefix, nil
	}
	if resolved.DefaultProject != "" {
		return s.ws.ResolveProjectForCreate(resolved.DefaultProject)
	}
	projects, err := s.ws.ListProjects()
	if err != nil {
		return "", err
	}
	if len(projects) == 1 {
		return projects[0], nil
	}
	return "", &output.CommandError{Kind: output.KindInvalidArgument, Message: "no project given and no default configured"}
}
