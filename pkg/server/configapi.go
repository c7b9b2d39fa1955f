package server

import (
	"net/http"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/output"
)

// configShowResponse renders the resolved view plus optional provenance.
type configShowResponse struct {
	Config     map[string]any           `json:"config"`
	Provenance map[string]config.Source `json:"provenance,omitempty"`
}

// ConfigFields flattens a resolved config into the canonical dotted keys.
// Shared with the CLI's config show rendering.
func ConfigFields(resolved *config.Resolved) map[string]any {
	fields := map[string]any{
		"server.port":                  resolved.ServerPort,
		"default.project":              resolved.DefaultProject,
		"default.prefix":               resolved.DefaultPrefix,
		"default.assignee":             resolved.DefaultAssignee,
		"default.reporter":             resolved.DefaultReporter,
		"default.priority":             resolved.DefaultPriority,
		"default.status":               resolved.DefaultStatus,
		"issue.states":                 resolved.IssueStates,
		"issue.types":                  resolved.IssueTypes,
		"issue.priorities":             resolved.IssuePriorities,
		"custom.tags":                  resolved.Tags,
		"custom.fields":                resolved.CustomFields,
		"scan.enable":                  resolved.ScanEnable,
		"scan.signal_words":            resolved.ScanSignalWords,
		"scan.ticket_words":            resolved.ScanTicketWords,
		"scan.strip_attributes":        resolved.ScanStripAttributes,
		"auto.set_reporter":            resolved.AutoSetReporter,
		"auto.assign_on_status":        resolved.AutoAssignOnStatus,
		"sprint.notifications.enabled": resolved.SprintNotificationsEnabled,
	}
	if resolved.ProjectName != "" {
		fields["project.name"] = resolved.ProjectName
	}
	return fields
}

func (s *Server) handleConfigShow(w http.ResponseWriter, r *http.Request) {
	resolved, err := s.resolvedConfig(r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, err)
		return
	}

	response := configShowResponse{Config: ConfigFields(resolved)}
	if r.URL.Query().Get("explain") == "1" || r.URL.Query().Get("explain") == "true" {
		response.Provenance = resolved.Provenance
	}
	writeData(w, response, nil)
}

type configSetRequest struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Project string `json:"project,omitempty"`
}

func (s *Server) handleConfigSet(w http.ResponseWriter, r *http.Request) {
	var req configSetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Field == "" {
		writeError(w, &output.CommandError{Kind: output.KindInvalidArgument, Message: "field is required"})
		return
	}

	if err := config.UpdateField(s.ws, req.Field, req.Value, req.Project); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, map[string]any{"field": req.Field, "value": req.Value, "project": req.Project}, nil)
}
