package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/buddy/internal/alert"
	"github.com/normanking/buddy/internal/bus"
	"github.com/normanking/buddy/internal/orchestrator"
	"github.com/normanking/buddy/internal/profile"
)

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

func testServer(t *testing.T, health HealthChecker) (*Server, *httptest.Server, *profile.MemoryStore, *bus.Bus) {
	t.Helper()
	store := profile.NewMemoryStore()
	b := bus.NewBus()
	feed := bus.NewFeed(b, bus.DefaultFeedConfig())
	c := orchestrator.New(&orchestrator.Config{Options: orchestrator.DefaultOptions(), Store: store, Bus: b})

	srv := New(c, Config{Addr: "127.0.0.1:0", Version: "test", Feed: feed, Store: health})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		feed.Stop()
		b.Close()
	})
	return srv, ts, store, b
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthHandler(t *testing.T) {
	_, ts, _, _ := testServer(t, fakeHealth{})
	var hr HealthResponse
	assert.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/healthz", nil, &hr))
	assert.Equal(t, "healthy", hr.Status)
	assert.Equal(t, "test", hr.Version)
	assert.True(t, hr.Services["store"].Healthy)

	_, bad, _, _ := testServer(t, fakeHealth{err: errors.New("database is locked")})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, bad, http.MethodGet, "/healthz", nil, &hr))
	assert.Equal(t, "degraded", hr.Status)
	assert.Equal(t, "database is locked", hr.Services["store"].Message)
}

func TestSessionFlow(t *testing.T) {
	_, ts, store, _ := testServer(t, nil)

	var opened SessionResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/users/priya/session", nil, &opened))
	assert.Equal(t, "priya", opened.UserID)
	assert.NotEmpty(t, opened.SessionID)

	var reply MessageResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/users/priya/messages", MessageRequest{Text: "I feel great today"}, &reply))
	assert.Equal(t, opened.SessionID, reply.SessionID)
	assert.NotEmpty(t, reply.Text)
	assert.Equal(t, 1, reply.Summary.MessagesCount)

	var closed orchestrator.CloseResult
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/users/priya/session/close", nil, &closed))
	assert.True(t, closed.Persisted)
	assert.Equal(t, 1, closed.MoodStreak)

	p, err := store.Load(context.Background(), "priya")
	require.NoError(t, err)
	assert.Len(t, p.EmotionalHistory, 1)

	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodPost, "/v1/users/priya/session/close", nil, nil))

	var weekly orchestrator.WeeklySummary
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/users/priya/weekly", nil, &weekly))
	assert.Equal(t, 1, weekly.CheckIns)

	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodGet, "/v1/users/ghost/weekly", nil, nil))
}

func TestMessageValidation(t *testing.T) {
	_, ts, _, _ := testServer(t, nil)

	resp, err := ts.Client().Post(ts.URL+"/v1/users/u/messages", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/v1/users/u/messages")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAlertEndpoints(t *testing.T) {
	_, ts, _, _ := testServer(t, nil)

	var reply MessageResponse
	for _, text := range []string{"I feel hopeless", "Everything is worthless", "I can't take it anymore"} {
		require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/users/u/messages", MessageRequest{Text: text}, &reply))
	}
	require.NotNil(t, reply.Alert)

	var list AlertsResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/users/u/alerts", nil, &list))
	require.Len(t, list.Alerts, 1)
	assert.Len(t, list.Log, 1)

	var a alert.Alert
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/users/u/alerts/"+reply.Alert.ID+"/consent", nil, &a))
	assert.True(t, a.GuardianConsent)
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/users/u/alerts/"+reply.Alert.ID+"/ack", nil, &a))
	assert.Equal(t, alert.StateAcknowledged, a.State)

	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodPost, "/v1/users/u/alerts/nope/ack", nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodPost, "/v1/users/other/alerts/nope/ack", nil, nil))

	var empty AlertsResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/users/other/alerts", nil, &empty))
	assert.Empty(t, empty.Alerts)
	assert.NotNil(t, empty.Log)
}

func TestAlertStream(t *testing.T) {
	_, ts, _, _ := testServer(t, nil)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/alerts/stream?user=u"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, text := range []string{"I feel hopeless", "Everything is worthless", "I can't take it anymore"} {
		require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/users/u/messages", MessageRequest{Text: text}, nil))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e bus.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, bus.EventAlertCreated, e.Type)
	assert.Equal(t, "u", e.UserID)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts, _, _ := testServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/healthz", nil, nil))

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "buddy_http_requests_total")
}

func TestShutdownClosesSessions(t *testing.T) {
	srv, ts, store, _ := testServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/users/u/messages", MessageRequest{Text: "I feel great today"}, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	p, err := store.Load(context.Background(), "u")
	require.NoError(t, err)
	assert.Len(t, p.EmotionalHistory, 1)
}
