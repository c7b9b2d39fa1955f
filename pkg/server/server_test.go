package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/workspace"
)

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	t.Setenv("LOTAR_HOME_CONFIG", filepath.Join(t.TempDir(), "absent.yml"))
	t.Setenv("LOTAR_PORT", "")
	t.Setenv("LOTAR_PROJECT", "")
	t.Setenv("LOTAR_DEFAULT_ASSIGNEE", "")
	t.Setenv("LOTAR_DEFAULT_REPORTER", "tester")
	t.Setenv("LOTAR_SSE_READY", "")
	t.Setenv("LOTAR_TEST_FAST_IO", "1")

	s := New(workspace.New(filepath.Join(t.TempDir(), ".tasks")))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url string, body any) (*http.Response, output.Envelope) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	var envelope output.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func getJSON(t *testing.T, url string) (*http.Response, output.Envelope) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var envelope output.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func dataMap(t *testing.T, envelope output.Envelope) map[string]any {
	t.Helper()
	m, ok := envelope.Data.(map[string]any)
	require.True(t, ok, "data is %T", envelope.Data)
	return m
}

func TestTaskAddAndListRoundTrip(t *testing.T) {
	_, ts := testServer(t)

	resp, envelope := postJSON(t, ts.URL+"/api/tasks/add", map[string]any{
		"project":  "TEST",
		"title":    "A",
		"priority": "High",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := dataMap(t, envelope)
	assert.Equal(t, "TEST-1", created["id"])
	assert.Equal(t, "High", created["priority"])
	assert.Equal(t, "Todo", created["status"])

	resp, envelope = getJSON(t, ts.URL+"/api/tasks/list?project=TEST")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing := dataMap(t, envelope)
	assert.Equal(t, float64(1), listing["total"])
}

func TestTaskListFuzzyTagFilter(t *testing.T) {
	_, ts := testServer(t)
	for _, spec := range []struct {
		title string
		tags  []string
	}{
		{"ops task", []string{"DevOps", "backend"}},
		{"ui task", []string{"frontend"}},
		{"db task", []string{"db", "storage"}},
	} {
		_, envelope := postJSON(t, ts.URL+"/api/tasks/add", map[string]any{
			"project": "TEST", "title": spec.title, "tags": spec.tags,
		})
		require.Nil(t, envelope.Error)
	}

	for query, wantTitles := range map[string][]string{
		"ops":    {"ops task"},
		"DEVOPS": {"ops task"},
		"front":  {"ui task"},
	} {
		_, envelope := getJSON(t, ts.URL+"/api/tasks/list?project=TEST&tags="+query)
		listing := dataMap(t, envelope)
		tasks := listing["tasks"].([]any)
		var titles []string
		for _, item := range tasks {
			titles = append(titles, item.(map[string]any)["title"].(string))
		}
		assert.Equal(t, wantTitles, titles, query)
	}
}

func TestTaskStatusEndpointAndValidation(t *testing.T) {
	_, ts := testServer(t)
	postJSON(t, ts.URL+"/api/tasks/add", map[string]any{"project": "TEST", "title": "A"})

	resp, envelope := postJSON(t, ts.URL+"/api/tasks/status", map[string]any{"id": "TEST-1", "status": "done"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Done", dataMap(t, envelope)["status"])

	resp, envelope = postJSON(t, ts.URL+"/api/tasks/status", map[string]any{"id": "TEST-1", "status": "dine"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "validation_error", envelope.Error.Code)
}

func TestTaskGetNotFoundMapsTo404(t *testing.T) {
	_, ts := testServer(t)
	resp, envelope := getJSON(t, ts.URL+"/api/tasks/get?id=TEST-9")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "not_found", envelope.Error.Code)
}

func TestCommentEndpoints(t *testing.T) {
	_, ts := testServer(t)
	postJSON(t, ts.URL+"/api/tasks/add", map[string]any{"project": "TEST", "title": "A"})

	_, envelope := postJSON(t, ts.URL+"/api/tasks/comment", map[string]any{"id": "TEST-1", "text": "hello"})
	data := dataMap(t, envelope)
	assert.Equal(t, float64(0), data["index"])

	_, envelope = postJSON(t, ts.URL+"/api/tasks/comment/update", map[string]any{"id": "TEST-1", "index": 0, "text": "edited"})
	updated := dataMap(t, envelope)
	comments := updated["comments"].([]any)
	assert.Equal(t, "edited", comments[0].(map[string]any)["text"])
}

func TestSprintCreateEmitsCanonicalizationWarning(t *testing.T) {
	_, ts := testServer(t)

	resp, envelope := postJSON(t, ts.URL+"/api/sprints/create", map[string]any{
		"label":   "X",
		"length":  "2w",
		"ends_at": "2030-01-15T17:00:00Z",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, envelope.Warnings)
	assert.Contains(t, envelope.Warnings[0], "plan.length was ignored")
}

func TestSprintAssignmentFlow(t *testing.T) {
	_, ts := testServer(t)
	postJSON(t, ts.URL+"/api/tasks/add", map[string]any{"project": "TEST", "title": "A"})
	postJSON(t, ts.URL+"/api/sprints/create", map[string]any{"label": "one"})
	postJSON(t, ts.URL+"/api/sprints/create", map[string]any{"label": "two"})

	_, envelope := postJSON(t, ts.URL+"/api/sprints/add", map[string]any{"sprint": "#1", "tasks": []string{"TEST-1"}})
	outcome := dataMap(t, envelope)
	assert.Equal(t, []any{"TEST-1"}, outcome["modified"].([]any))

	// Force move into sprint 2 reports the replaced membership.
	_, envelope = postJSON(t, ts.URL+"/api/sprints/move", map[string]any{"sprint": "#2", "tasks": []string{"TEST-1"}})
	outcome = dataMap(t, envelope)
	replaced := outcome["replaced"].([]any)
	require.Len(t, replaced, 1)
	assert.Equal(t, "TEST-1", replaced[0].(map[string]any)["task_id"])

	_, envelope = getJSON(t, ts.URL+"/api/tasks/get?id=TEST-1")
	loaded := dataMap(t, envelope)
	assert.Equal(t, []any{float64(2)}, loaded["sprints"].([]any))
}

func TestSprintBacklog(t *testing.T) {
	_, ts := testServer(t)
	postJSON(t, ts.URL+"/api/tasks/add", map[string]any{"project": "TEST", "title": "Free"})
	postJSON(t, ts.URL+"/api/tasks/add", map[string]any{"project": "TEST", "title": "Busy"})
	postJSON(t, ts.URL+"/api/sprints/create", map[string]any{"label": "one"})
	postJSON(t, ts.URL+"/api/sprints/add", map[string]any{"sprint": "#1", "tasks": []string{"TEST-2"}})

	_, envelope := getJSON(t, ts.URL+"/api/sprints/backlog?project=TEST")
	data := dataMap(t, envelope)
	assert.Equal(t, float64(1), data["count"])
}

func TestBurndownFallbackWarning(t *testing.T) {
	_, ts := testServer(t)
	postJSON(t, ts.URL+"/api/tasks/add", map[string]any{"project": "TEST", "title": "A"})
	postJSON(t, ts.URL+"/api/sprints/create", map[string]any{"label": "one", "length": "1w"})
	postJSON(t, ts.URL+"/api/sprints/add", map[string]any{"sprint": "#1", "tasks": []string{"TEST-1"}})

	_, envelope := getJSON(t, ts.URL+"/api/sprints/burndown?sprint=%231&metric=points")
	require.NotEmpty(t, envelope.Warnings)
	report := dataMap(t, envelope)
	assert.Equal(t, "tasks", report["metric"])
	totals := report["totals"].(map[string]any)
	assert.Equal(t, float64(0), totals["points"])
}

func TestConfigShowAndSet(t *testing.T) {
	_, ts := testServer(t)

	_, envelope := postJSON(t, ts.URL+"/api/config/set", map[string]any{"field": "default_priority", "value": "High"})
	require.Nil(t, envelope.Error)

	_, envelope = getJSON(t, ts.URL+"/api/config/show?explain=1")
	data := dataMap(t, envelope)
	cfg := data["config"].(map[string]any)
	assert.Equal(t, "High", cfg["default.priority"])
	provenance := data["provenance"].(map[string]any)
	assert.Equal(t, "global", provenance["default.priority"])
	assert.Equal(t, "default", provenance["server.port"])
}

func TestOpenAPIAndCORS(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/tasks/list", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSSEFilterAndOrder(t *testing.T) {
	_, ts := testServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/events?kinds=task_created&project=TEST&debounce_ms=0&ready=1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)

	// First frame is the retry hint.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "retry: 1000\n", line)

	readEvent := func() (string, string) {
		var kind, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				kind = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && kind != "":
				return kind, data
			}
		}
	}

	kind, _ := readEvent()
	require.Equal(t, "ready", kind)

	go func() {
		postJSON(t, ts.URL+"/api/tasks/add", map[string]any{"project": "TEST", "title": "one"})
		postJSON(t, ts.URL+"/api/tasks/add", map[string]any{"project": "OTHER", "title": "noise"})
		postJSON(t, ts.URL+"/api/tasks/add", map[string]any{"project": "TEST", "title": "two"})
	}()

	done := make(chan struct{})
	var ids []string
	go func() {
		defer close(done)
		for len(ids) < 2 {
			kind, data := readEvent()
			if kind != "task_created" {
				continue
			}
			var payload map[string]any
			if json.Unmarshal([]byte(data), &payload) == nil {
				ids = append(ids, fmt.Sprint(payload["id"]))
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for SSE events")
	}
	assert.Equal(t, []string{"TEST-1", "TEST-2"}, ids)
}

func TestTestStopEndpoint(t *testing.T) {
	s, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/__test/stop")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case <-s.stopCh:
	default:
		t.Fatal("stop channel not closed")
	}
}
