package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// testBackend records every request and serves canned JSON by path.
type testBackend struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]string
	status    int
	server    *httptest.Server
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{responses: make(map[string]string), status: http.StatusOK}
	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			Method: r.Method, Path: r.URL.EscapedPath(),
			Query: r.URL.RawQuery, Body: string(raw),
		})
		body, ok := b.responses[r.URL.Path]
		status := b.status
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
		}
		if ok {
			io.WriteString(w, body)
		} else {
			io.WriteString(w, "{}")
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *testBackend) client() *Client {
	return New(Config{BaseURL: b.server.URL, RequestsPerSecond: 1000})
}

func (b *testBackend) respond(path, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[path] = body
}

func (b *testBackend) fail(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

func (b *testBackend) last(t *testing.T) recordedRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.requests)
	return b.requests[len(b.requests)-1]
}

func TestListBoxesDecodesCollection(t *testing.T) {
	b := newTestBackend(t)
	b.respond("/boxes", `[{"id":"b1","name":"rack-1","status":"running"}]`)
	c := b.client()

	boxes, err := c.ListBoxes(context.Background())

	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, "b1", boxes[0].ID)
	assert.Equal(t, fleet.StatusRunning, boxes[0].Status)
	req := b.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/boxes", req.Path)
}

func TestActionEndpointsUseExpectedPaths(t *testing.T) {
	b := newTestBackend(t)
	c := b.client()
	ctx := context.Background()

	cases := []struct {
		name   string
		call   func() error
		method string
		path   string
	}{
		{"start box", func() error { return c.StartBox(ctx, "b1") }, http.MethodPost, "/boxes/b1/start"},
		{"stop box", func() error { return c.StopBox(ctx, "b1") }, http.MethodPost, "/boxes/b1/stop"},
		{"refresh ip", func() error { return c.RefreshBoxIP(ctx, "b1") }, http.MethodPost, "/boxes/b1/refresh-ip"},
		{"delete box", func() error { return c.DeleteBox(ctx, "b1") }, http.MethodDelete, "/boxes/b1"},
		{"stop viewer", func() error { return c.StopViewer(ctx, "v1") }, http.MethodPost, "/viewers/v1/stop"},
		{"screenshot", func() error { return c.Screenshot(ctx, "v1") }, http.MethodPost, "/viewers/v1/screenshot"},
		{"add tab", func() error { return c.AddTab(ctx, "v1") }, http.MethodPost, "/viewers/v1/add-tab"},
		{"resource check", func() error { return c.RunResourceCheck(ctx) }, http.MethodPost, "/system/resources/check"},
		{"stop idle", func() error { return c.StopIdleViewers(ctx, false) }, http.MethodPost, "/system/resources/stop-idle"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.call())
			req := b.last(t)
			assert.Equal(t, tc.method, req.Method)
			assert.Equal(t, tc.path, req.Path)
		})
	}
}

func TestTabActionsCarryTabIndex(t *testing.T) {
	b := newTestBackend(t)
	c := b.client()

	require.NoError(t, c.CloseTab(context.Background(), "v1", 3))

	req := b.last(t)
	assert.Equal(t, "/viewers/v1/close-tab", req.Path)
	assert.JSONEq(t, `{"tabIndex":3}`, req.Body)
}

func TestUpdateViewerOmitsUntouchedFields(t *testing.T) {
	b := newTestBackend(t)
	c := b.client()

	maxTabs := 8
	_, err := c.UpdateViewer(context.Background(), "v1", ViewerUpdate{MaxTabs: &maxTabs})

	require.NoError(t, err)
	req := b.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.JSONEq(t, `{"maxTabs":8}`, req.Body,
		"nil fields must be absent, not null or zero")
}

func TestUpdateResourceLimitsSentAsUnit(t *testing.T) {
	b := newTestBackend(t)
	c := b.client()

	limits := fleet.ResourceLimits{CPULimit: 50, MemoryLimit: 512, NetworkLimit: 10}
	_, err := c.UpdateViewer(context.Background(), "v1", ViewerUpdate{ResourceLimits: &limits})

	require.NoError(t, err)
	var sent struct {
		ResourceLimits *fleet.ResourceLimits `json:"resourceLimits"`
	}
	require.NoError(t, json.Unmarshal([]byte(b.last(t).Body), &sent))
	require.NotNil(t, sent.ResourceLimits)
	assert.Equal(t, limits, *sent.ResourceLimits)
}

func TestStopIdleCarriesForceFlag(t *testing.T) {
	b := newTestBackend(t)
	c := b.client()

	require.NoError(t, c.StopIdleViewers(context.Background(), true))
	assert.JSONEq(t, `{"force":true}`, b.last(t).Body)
}

func TestUpdateResourceConfigOmitsUntouchedFields(t *testing.T) {
	b := newTestBackend(t)
	c := b.client()

	interval := 30
	err := c.UpdateResourceConfig(context.Background(), ResourceConfigUpdate{CheckIntervalSeconds: &interval})

	require.NoError(t, err)
	req := b.last(t)
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/system/resources/config", req.Path)
	assert.JSONEq(t, `{"checkIntervalSeconds":30}`, req.Body)
}

func TestIDsArePathEscaped(t *testing.T) {
	b := newTestBackend(t)
	c := b.client()

	_, err := c.GetBox(context.Background(), "odd id/with slash")

	require.NoError(t, err)
	// httptest decodes the path back, so the request reaching the mux has
	// the raw id as a single segment only if escaping happened.
	assert.Equal(t, "/boxes/odd%20id%2Fwith%20slash", b.last(t).Path)
}

func TestNon2xxBecomesStatusError(t *testing.T) {
	b := newTestBackend(t)
	b.fail(http.StatusBadRequest)
	b.respond("/boxes/b1/start", `{"error":"box is already running"}`)
	c := b.client()

	err := c.StartBox(context.Background(), "b1")

	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "box is already running", se.Message)
	assert.True(t, IsValidation(err))
}

func TestServerErrorIsNotValidation(t *testing.T) {
	b := newTestBackend(t)
	b.fail(http.StatusBadGateway)
	c := b.client()

	err := c.StartBox(context.Background(), "b1")

	require.Error(t, err)
	assert.False(t, IsValidation(err))
}

func TestErrorEnvelopeFallsBackToMessage(t *testing.T) {
	resp := &http.Response{
		StatusCode: 422,
		Body:       io.NopCloser(strings.NewReader(`{"message":"maxTabs out of range"}`)),
	}
	se := newStatusError(resp)
	assert.Equal(t, "maxTabs out of range", se.Message)
}

func TestConcurrentListsShareOneRequest(t *testing.T) {
	var hits int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"b1","status":"running"}]`)
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, RequestsPerSecond: 1000})

	var wg sync.WaitGroup
	results := make([][]fleet.Box, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			boxes, err := c.ListBoxes(context.Background())
			assert.NoError(t, err)
			results[i] = boxes
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits),
		"concurrent identical GETs must collapse into one request")
	for _, boxes := range results {
		require.Len(t, boxes, 1)
	}
}

func TestChatMessagesQueryEncoding(t *testing.T) {
	b := newTestBackend(t)
	b.respond("/streams/chat", `[{"author":"fan","text":"hello"}]`)
	c := b.client()

	msgs, err := c.ChatMessages(context.Background(), "https://live.test/alpha?x=1")

	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "fan", msgs[0].Author)
	req := b.last(t)
	assert.Equal(t, "/streams/chat", req.Path)
	assert.Equal(t, "url="+url.QueryEscape("https://live.test/alpha?x=1"), req.Query)
}
