package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/supportmesh"
	"github.com/hupe1980/supportmesh/core"
)

func newTestServer(t *testing.T) (*supportmesh.Mesh, *httptest.Server) {
	t.Helper()
	mesh := supportmesh.New()
	t.Cleanup(mesh.Close)

	srv := httptest.NewServer(New(mesh).Router())
	t.Cleanup(srv.Close)
	return mesh, srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestGateway_SubmitMessageAndGetSession(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/messages", map[string]string{
		"session_id":     "s-1",
		"text":           "Where is my order #ORD-12345?",
		"customer_email": "jane@example.com",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var submitted map[string]string
	decodeBody(t, resp, &submitted)
	assert.Equal(t, "s-1", submitted["session_id"])

	resp, err := http.Get(srv.URL + "/api/sessions/s-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap core.Snapshot
	decodeBody(t, resp, &snap)
	assert.Equal(t, "s-1", snap.SessionID)
	assert.Equal(t, "jane@example.com", snap.CustomerEmail)
	assert.NotEmpty(t, snap.Messages)
	assert.Equal(t, "track_order", snap.CurrentIntent)
}

func TestGateway_SubmitMessageGeneratesSessionID(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/messages", map[string]string{"text": "hello there"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var submitted map[string]string
	decodeBody(t, resp, &submitted)
	assert.NotEmpty(t, submitted["session_id"])
}

func TestGateway_SubmitMessageValidation(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/messages", map[string]string{"session_id": "s-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Post(srv.URL+"/api/messages", "application/json", strings.NewReader("{broken"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGateway_SessionNotFound(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGateway_EscalationLifecycle(t *testing.T) {
	mesh, srv := newTestServer(t)

	// An angry message lands in the escalation queue.
	resp := postJSON(t, srv.URL+"/api/messages", map[string]string{
		"session_id": "s-angry",
		"text":       "This is absolutely unacceptable, worst service ever!",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/escalations")
	require.NoError(t, err)
	var status struct {
		QueueSize int `json:"queue_size"`
	}
	decodeBody(t, resp, &status)
	assert.Equal(t, 1, status.QueueSize)

	resp = postJSON(t, srv.URL+"/api/operators/available", map[string]string{
		"operator_id":   "op-1",
		"operator_name": "Dana",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/escalations/resolve", map[string]string{
		"session_id":       "s-angry",
		"operator_id":      "op-1",
		"resolution_notes": "refund issued",
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	stats := mesh.Stats()
	assert.Equal(t, int64(1), stats.Escalations.Resolved)
	assert.Equal(t, int64(1), stats.Transcripts)
}

func TestGateway_OperatorValidation(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/operators/available", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/escalations/resolve", map[string]string{"session_id": "s-1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGateway_Stats(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/messages", map[string]string{
		"session_id": "s-1",
		"text":       "track my order please",
	})
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats supportmesh.Stats
	decodeBody(t, resp, &stats)
	assert.Equal(t, int64(1), stats.Coordinator.MessagesProcessed)
	assert.Greater(t, stats.Bus.Published, int64(0))
}

func TestGateway_EventStream(t *testing.T) {
	mesh, srv := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The handler registers its subscriptions after the handshake; wait for
	// the stream to attach before publishing.
	require.Eventually(t, func() bool {
		return mesh.Bus().SubscriberCount(core.EventNewUserMessage) > 1
	}, 2*time.Second, 10*time.Millisecond)

	resp := postJSON(t, srv.URL+"/api/messages", map[string]string{
		"session_id": "s-1",
		"text":       "track my order please",
	})
	resp.Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// The pipeline runs synchronously on submit, so the whole cascade is
	// already buffered. Nested publishes forward before outer ones, so only
	// assert on the set of event types, not their order.
	got := map[core.EventType]bool{}
	for i := 0; i < 3; i++ {
		var event core.Event
		require.NoError(t, conn.ReadJSON(&event))
		got[event.Type] = true
	}
	assert.True(t, got[core.EventNewUserMessage])
	assert.True(t, got[core.EventSentimentRecognized])
	assert.True(t, got[core.EventIntentRecognized])
}
