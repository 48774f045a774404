package httpapi_test

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xLillium/rip/internal/command"
	"github.com/xLillium/rip/internal/hooks"
	"github.com/xLillium/rip/internal/httpapi"
	"github.com/xLillium/rip/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	registry := command.NewRegistry()
	require.NoError(t, registry.Register("ping", "test command", func(command.Context) (string, error) {
		return "pong", nil
	}))

	svc := session.NewService(hooks.NewEngine(), nil, "", session.WithCommands(registry))
	h := httpapi.New(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", h.CreateSession)
	mux.HandleFunc("POST /sessions/{id}/input", h.SendInput)
	mux.HandleFunc("GET /sessions/{id}/events", h.Events)
	mux.HandleFunc("POST /sessions/{id}/commands/{name}", h.ExecuteCommand)
	mux.HandleFunc("POST /sessions/{id}/cancel", h.Cancel)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func TestCreateSessionReturns201WithID(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Post(ts.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestInputOnUnknownSessionReturns404(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Post(ts.URL+"/sessions/missing/input", "application/json", strings.NewReader(`{"input":"hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelOnUnknownSessionReturns404(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Post(ts.URL+"/sessions/missing/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecuteCommandReturnsRegisteredCommandResult(t *testing.T) {
	ts, client := newTestServer(t)

	createResp, err := client.Post(ts.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	var created struct {
		SessionID string `json:"session_id"`
	}
	defer createResp.Body.Close()
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))

	resp, err := client.Post(ts.URL+"/sessions/"+created.SessionID+"/commands/ping", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Result string `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "pong", body.Result)
}

func TestExecuteCommandUnknownNameReturns400(t *testing.T) {
	ts, client := newTestServer(t)

	createResp, err := client.Post(ts.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	var created struct {
		SessionID string `json:"session_id"`
	}
	defer createResp.Body.Close()
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))

	resp, err := client.Post(ts.URL+"/sessions/"+created.SessionID+"/commands/missing", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsStreamsSessionFramesAsSSE(t *testing.T) {
	ts, client := newTestServer(t)

	createResp, err := client.Post(ts.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	var created struct {
		SessionID string `json:"session_id"`
	}
	defer createResp.Body.Close()
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))

	inputResp, err := client.Post(ts.URL+"/sessions/"+created.SessionID+"/input", "application/json", strings.NewReader(`{"input":"hello"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, inputResp.StatusCode)
	inputResp.Body.Close()

	eventsResp, err := client.Get(ts.URL + "/sessions/" + created.SessionID + "/events")
	require.NoError(t, err)
	defer eventsResp.Body.Close()
	require.Equal(t, http.StatusOK, eventsResp.StatusCode)
	require.Equal(t, "text/event-stream", eventsResp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(eventsResp.Body)
	var eventLines, dataLines int
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventLines++
		case strings.HasPrefix(line, "data:"):
			dataLines++
			if strings.Contains(line, "session_ended") {
				return
			}
		}
	}
	t.Fatal("stream closed before a session_ended frame arrived")
}
