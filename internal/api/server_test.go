package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobilecore/internal/event"
	"git.home.luguber.info/inful/mobilecore/internal/hub"
)

type stateExt struct{ *hub.Module }

func (x *stateExt) SharedStateName() string { return "com.test.state" }
func (x *stateExt) OnRegistered()           { x.PublishSharedState(event.Data{"k": "v"}) }
func (x *stateExt) OnUnregistered()         {}

type fakeQueue struct {
	mu    sync.Mutex
	table string
	size  int64
}

func (q *fakeQueue) Table() string     { return q.table }
func (q *fakeQueue) IsSuspended() bool { return false }

func (q *fakeQueue) Size() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *fakeQueue) DeleteAllHits() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.size = 0
	return true
}

func newTestServer(t *testing.T) (*Server, *hub.Hub, *fakeQueue) {
	t.Helper()
	h, err := hub.New(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { h.Dispose(2 * time.Second) })
	x := &stateExt{Module: hub.NewModule("state")}
	require.NoError(t, h.RegisterModule(x))
	h.FinishModulesRegistration()
	require.Eventually(t, x.IsRegistered, 2*time.Second, time.Millisecond)

	q := &fakeQueue{table: "signal_hits", size: 3}
	srv := NewServer(":0", h,
		WithQueues(func() []Queue { return []Queue{q} }),
		WithTokens([]string{"secret"}),
		WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})))
	return srv, h, q
}

func do(t *testing.T, srv *Server, method, path string, body []byte, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, true, data["booted"])
}

func TestModulesEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/v1/modules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mods := decode(t, w)["data"].([]any)
	require.Len(t, mods, 1)
	assert.Equal(t, "state", mods[0].(map[string]any)["name"])
}

func TestSharedStateEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	require.Eventually(t, func() bool {
		return do(t, srv, http.MethodGet, "/v1/shared-states/com.test.state", nil).Code == http.StatusOK
	}, 2*time.Second, time.Millisecond)

	w := do(t, srv, http.MethodGet, "/v1/shared-states/com.test.state", nil)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "data", data["status"])
	assert.Equal(t, map[string]any{"k": "v"}, data["data"])

	w = do(t, srv, http.MethodGet, "/v1/shared-states/com.test.missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/v1/shared-states", nil)
	assert.Contains(t, decode(t, w)["data"], "com.test.state")
}

func TestDispatchEndpoint(t *testing.T) {
	srv, h, _ := newTestServer(t)
	before := h.EventCount()

	body, _ := json.Marshal(DispatchRequest{
		Name:   "api track",
		Type:   string(event.TypeGenericTrack),
		Source: string(event.SourceRequestContent),
		Data:   map[string]any{"action": "tap"},
	})
	w := do(t, srv, http.MethodPost, "/v1/events", body)
	require.Equal(t, http.StatusAccepted, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "api track", data["name"])
	assert.GreaterOrEqual(t, data["eventNumber"].(float64), float64(before))

	w = do(t, srv, http.MethodPost, "/v1/events", []byte(`{"name":"x"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, srv, http.MethodPost, "/v1/events", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueuesEndpoints(t *testing.T) {
	srv, _, q := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/v1/queues", nil)
	require.Equal(t, http.StatusOK, w.Code)
	queues := decode(t, w)["data"].([]any)
	require.Len(t, queues, 1)
	assert.Equal(t, float64(3), queues[0].(map[string]any)["size"])

	w = do(t, srv, http.MethodDelete, "/v1/queues/signal_hits", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, srv, http.MethodDelete, "/v1/queues/signal_hits", nil, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, int64(3), q.Size())

	w = do(t, srv, http.MethodDelete, "/v1/queues/signal_hits", nil, "Authorization", "Bearer secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["data"].(map[string]any)["deleted"])
	assert.Equal(t, int64(0), q.Size())

	w = do(t, srv, http.MethodDelete, "/v1/queues/unknown", nil, "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}
