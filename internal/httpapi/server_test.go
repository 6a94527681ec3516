package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRenderer keeps the bound actions so tests can invoke them.
type stubRenderer struct {
	mu      sync.Mutex
	slots   int
	actions []snackbar.Action
}

func (r *stubRenderer) ActionSlots() int       { return r.slots }
func (r *stubRenderer) RenderMessage(string)   {}
func (r *stubRenderer) SetVisible(bool)        {}
func (r *stubRenderer) SetActionsVisible(bool) {}
func (r *stubRenderer) ClearMessage()          {}

func (r *stubRenderer) RenderActions(a []snackbar.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = a
}
func (r *stubRenderer) ClearActions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = nil
}

func (r *stubRenderer) invoke(i int) {
	r.mu.Lock()
	h := r.actions[i].Handler
	r.mu.Unlock()
	h()
}

func setupTestServer(t *testing.T, secret string) (*Server, *snackbar.Queue, *stubRenderer) {
	t.Helper()
	r := &stubRenderer{slots: 2}
	q := snackbar.New(r, snackbar.WithDefaultTimeout(0), snackbar.WithGracePeriod(0))
	return NewServer(q, Options{JWTSecret: secret}), q, r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestServer_Health(t *testing.T) {
	s, _, _ := setupTestServer(t, "secret")
	w := doJSON(t, s.Handler(), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestServer_Submit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "plain message", body: `{"message": "Saved"}`, wantStatus: http.StatusAccepted},
		{name: "timeout in ms", body: `{"message": "Saved", "timeout": 1500}`, wantStatus: http.StatusAccepted},
		{name: "timeout string", body: `{"message": "Saved", "timeout": "2s"}`, wantStatus: http.StatusAccepted},
		{name: "filled slots", body: `{"message": "Deleted", "actions": [{"label": "Undo"}, {"label": "Trash"}]}`, wantStatus: http.StatusAccepted},
		{name: "empty message", body: `{"message": "  "}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "slot mismatch", body: `{"message": "x", "actions": [{"label": "Undo"}]}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "blank label", body: `{"message": "x", "actions": [{"label": ""}, {"label": "b"}]}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "negative timeout", body: `{"message": "x", "timeout": "-1s"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "bad callback", body: `{"message": "x", "actions": [{"label": "a", "callback_url": "ftp://x"}, {"label": "b"}]}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "malformed", body: `{"message":`, wantStatus: http.StatusBadRequest},
		{name: "bad timeout", body: `{"message": "x", "timeout": "soon"}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, q, _ := setupTestServer(t, "")
			w := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/notifications", tt.body, nil)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			out := decode(t, w)
			if tt.wantStatus == http.StatusAccepted {
				id, _ := out["id"].(string)
				assert.Len(t, id, 26)
				cur, ok := q.Current()
				require.True(t, ok)
				assert.Equal(t, id, cur.ID)
			} else {
				assert.NotEmpty(t, out["error"])
				assert.Equal(t, snackbar.StateIdle, q.State())
			}
		})
	}
}

func TestServer_SubmitUsesTimeout(t *testing.T) {
	s, q, _ := setupTestServer(t, "")
	w := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/notifications", `{"message": "a", "timeout": 1500}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, cur.Timeout)
}

func TestServer_StatusAndClose(t *testing.T) {
	s, q, _ := setupTestServer(t, "")
	h := s.Handler()

	w := doJSON(t, h, http.MethodGet, "/api/v1/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "idle", out["state"])
	assert.Nil(t, out["current"])
	assert.Equal(t, float64(0), out["pending"])

	for _, msg := range []string{"first", "second", "third"} {
		w = doJSON(t, h, http.MethodPost, "/api/v1/notifications", `{"message": "`+msg+`"}`, nil)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/status", "", nil)
	out = decode(t, w)
	assert.Equal(t, "displaying", out["state"])
	assert.Equal(t, float64(2), out["pending"])
	cur, ok := out["current"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "first", cur["message"])

	w = doJSON(t, h, http.MethodPost, "/api/v1/notifications/close", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["closed"])
	assert.NotEqual(t, snackbar.StateIdle, q.State())
}

func TestServer_CloseAll(t *testing.T) {
	s, q, _ := setupTestServer(t, "")
	h := s.Handler()

	for _, msg := range []string{"a", "b", "c"} {
		w := doJSON(t, h, http.MethodPost, "/api/v1/notifications", `{"message": "`+msg+`"}`, nil)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := doJSON(t, h, http.MethodDelete, "/api/v1/notifications", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["dropped"])

	require.NoError(t, q.Wait(waitCtx(t, time.Second)))
	assert.Equal(t, snackbar.StateIdle, q.State())
}

func TestServer_Callback(t *testing.T) {
	var (
		mu       sync.Mutex
		received []CallbackPayload
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p CallbackPayload
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	s, _, r := setupTestServer(t, "")
	body := `{"message": "Deploy?", "actions": [{"label": "Yes", "callback_url": "` + hook.URL + `"}, {"label": "No"}]}`
	w := doJSON(t, s.Handler(), http.MethodPost, "/api/v1/notifications", body, nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode(t, w)["id"].(string)

	r.invoke(1) // no callback_url
	r.invoke(0)
	s.callbacks.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []CallbackPayload{{ID: id, Label: "Yes"}}, received)
}

func TestServer_JWT(t *testing.T) {
	const secret = "test-secret"
	s, _, _ := setupTestServer(t, secret)
	h := s.Handler()

	w := doJSON(t, h, http.MethodGet, "/api/v1/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/status", "", http.Header{"Authorization": {"Basic abc"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	bad, err := GenerateToken("other-secret", "ci", time.Hour)
	require.NoError(t, err)
	w = doJSON(t, h, http.MethodGet, "/api/v1/status", "", http.Header{"Authorization": {"Bearer " + bad}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := GenerateToken(secret, "ci", -time.Minute)
	require.NoError(t, err)
	w = doJSON(t, h, http.MethodGet, "/api/v1/status", "", http.Header{"Authorization": {"Bearer " + expired}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	good, err := GenerateToken(secret, "ci", time.Hour)
	require.NoError(t, err)
	w = doJSON(t, h, http.MethodGet, "/api/v1/status", "", http.Header{"Authorization": {"Bearer " + good}})
	assert.Equal(t, http.StatusOK, w.Code)

	forever, err := GenerateToken(secret, "ci", 0)
	require.NoError(t, err)
	w = doJSON(t, h, http.MethodGet, "/api/v1/status", "", http.Header{"Authorization": {"Bearer " + forever}})
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open.
	w = doJSON(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(nil))
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	w := doJSON(t, router, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCallbackClient_Post(t *testing.T) {
	fail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer fail.Close()

	c := NewCallbackClient(nil)
	err := c.Post(context.Background(), fail.URL, CallbackPayload{ID: "x", Label: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestServer_ListenAndServe(t *testing.T) {
	s, _, _ := setupTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func waitCtx(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}
