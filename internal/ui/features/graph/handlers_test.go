package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/insightgraph/internal/analysis"
	"github.com/leapstack-labs/insightgraph/internal/analysis/analysistest"
	"github.com/leapstack-labs/insightgraph/internal/controller"
	"github.com/leapstack-labs/insightgraph/internal/graph"
	"github.com/leapstack-labs/insightgraph/internal/state"
	"github.com/leapstack-labs/insightgraph/internal/testutil"
	graphtypes "github.com/leapstack-labs/insightgraph/internal/ui/features/graph/types"
	"github.com/leapstack-labs/insightgraph/internal/ui/notifier"
)

type testFixture struct {
	Router   chi.Router
	Ctrl     *controller.Controller
	Backend  *analysistest.Backend
	Notifier *notifier.Notifier
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	backend := analysistest.New(t)
	backend.SetHubItems("hub-1",
		analysistest.Item("a", "Revenue by region"),
		analysistest.Item("b", "Seasonality"),
		analysistest.Item("c", "Outliers"),
		analysistest.Item("d", "Correlations"),
		analysistest.Item("e", "Summary"),
	)
	client, err := analysis.NewClient(analysis.Config{BaseURL: backend.URL(), Timeout: 5 * time.Second, Logger: logger})
	require.NoError(t, err)

	snapshots := state.NewSQLiteStore()
	require.NoError(t, snapshots.Open(filepath.Join(t.TempDir(), "state.db")))
	require.NoError(t, snapshots.Migrate())
	t.Cleanup(func() { _ = snapshots.Close() })

	ctrl := controller.New(controller.Config{
		Backend:      client,
		Snapshots:    snapshots,
		PollInterval: 5 * time.Millisecond,
		Logger:       logger,
	})
	t.Cleanup(func() { _ = ctrl.Close() })

	notify := notifier.New()
	ctrl.Store().Subscribe(notify)

	r := chi.NewRouter()
	require.NoError(t, SetupRoutes(r, ctrl, sessions.NewCookieStore([]byte("test-secret")), notify, 0, logger))

	return &testFixture{Router: r, Ctrl: ctrl, Backend: backend, Notifier: notify}
}

func (f *testFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.Router.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestUpload(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(uploadRequest(t, "sales.csv", testutil.CSV))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	st := decode[controller.Status](t, rec)
	assert.Equal(t, "Analyzing sales.csv", st.Message)
	assert.Equal(t, "hub-1", st.Hub)

	require.NoError(t, f.Ctrl.Wait())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/graph", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[graph.Document](t, rec)
	require.Len(t, doc.Nodes, 6)
	assert.Len(t, doc.Edges, 5)
	assert.Equal(t, "sales.csv", doc.Nodes[0].Title)
	assert.Equal(t, "Revenue by region", doc.Nodes[1].Title)
}

func TestUpload_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{
			name: "not multipart",
			req: func(*testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("region,revenue"))
			},
		},
		{
			name: "empty file",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "empty.csv", "")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			rec := f.do(tt.req(t))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[graphtypes.ErrorResponse](t, rec).Error)
			assert.Empty(t, f.Backend.Uploads())
		})
	}
}

func TestUpload_InvalidCSVFlashes(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(uploadRequest(t, "empty.csv", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[graphtypes.ErrorResponse](t, rec).Error, "upload failed")
	assert.Empty(t, f.Backend.Uploads())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[graphtypes.StatusResponse](t, rec)
	assert.True(t, resp.Failed)
	assert.Equal(t, "Upload of empty.csv failed", resp.Message)
	assert.Equal(t, []string{"Upload of empty.csv failed"}, resp.Flashes)
}

func TestUpload_BackendFailureFlashes(t *testing.T) {
	f := setupTestFixture(t)
	f.Backend.FailStart(true)

	rec := f.do(uploadRequest(t, "sales.csv", testutil.CSV))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[graphtypes.ErrorResponse](t, rec).Error, "upload failed")
	assert.Equal(t, 0, f.Ctrl.Store().Snapshot().Len())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[graphtypes.StatusResponse](t, rec)
	assert.True(t, resp.Failed)
	assert.Equal(t, []string{"Upload of sales.csv failed"}, resp.Flashes)
}

func TestNodeActions(t *testing.T) {
	f := setupTestFixture(t)
	f.Backend.SetDetails("a",
		analysistest.Item("x", "X"),
		analysistest.Item("y", "Y"),
		analysistest.Item("z", "Z"),
	)
	require.Equal(t, http.StatusAccepted, f.do(uploadRequest(t, "sales.csv", testutil.CSV)).Code)
	require.NoError(t, f.Ctrl.Wait())

	first := graph.ToDocument(f.Ctrl.Store().Snapshot()).Nodes[1].ID
	post := func(path string) *httptest.ResponseRecorder {
		return f.do(httptest.NewRequest(http.MethodPost, path, nil))
	}

	assert.Equal(t, http.StatusNotFound, post("/api/nodes/missing/click").Code)
	assert.Equal(t, http.StatusConflict, post("/api/nodes/"+first+"/explore").Code, "not highlighted")
	assert.Equal(t, http.StatusConflict, post("/api/nodes/hub-1/explore").Code, "root")

	assert.Equal(t, http.StatusNoContent, post("/api/nodes/"+first+"/click?control=true").Code)
	assert.Equal(t, graph.DefaultViewport, f.Ctrl.Store().Snapshot().Viewport())

	assert.Equal(t, http.StatusNoContent, post("/api/nodes/"+first+"/toggle").Code)
	n, err := f.Ctrl.Store().Node(first)
	require.NoError(t, err)
	assert.True(t, n.Display.Expanded)

	rec := post("/api/nodes/" + first + "/explore")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, decode[graphtypes.PlaceholdersResponse](t, rec).Placeholders, 3)
	require.NoError(t, f.Ctrl.Wait())

	rec = post("/api/nodes/" + first + "/questions/q-unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/highlight", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := graph.Highlighted(f.Ctrl.Store().Snapshot())
	assert.False(t, ok)
}

func TestPrompt(t *testing.T) {
	f := setupTestFixture(t)
	f.Backend.SetPrompted("a", analysistest.Item("p", "Prompted"))
	require.Equal(t, http.StatusAccepted, f.do(uploadRequest(t, "sales.csv", testutil.CSV)).Code)
	require.NoError(t, f.Ctrl.Wait())

	first := graph.ToDocument(f.Ctrl.Store().Snapshot()).Nodes[1].ID
	require.NoError(t, f.Ctrl.Click(first, false))

	prompt := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/nodes/"+first+"/prompt", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return f.do(req)
	}

	assert.Equal(t, http.StatusUnprocessableEntity, prompt(`{"prompt": "  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, prompt(`{not json`).Code)

	rec := prompt(`{"prompt": "why north?"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	ids := decode[graphtypes.PlaceholdersResponse](t, rec).Placeholders
	require.Len(t, ids, 1)
	require.NoError(t, f.Ctrl.Wait())

	n, err := f.Ctrl.Store().Node(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Prompted", n.Title())
	assert.Equal(t, []string{"why north?"}, f.Backend.Prompts())
}

func TestViewport(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/api/viewport", strings.NewReader(`{"x": 10, "y": -5, "zoom": 0.5}`))
	assert.Equal(t, http.StatusNoContent, f.do(req).Code)
	assert.Equal(t, graph.Viewport{X: 10, Y: -5, Zoom: 0.5}, f.Ctrl.Store().Snapshot().Viewport())

	req = httptest.NewRequest(http.MethodPut, "/api/viewport", strings.NewReader(`{"x": 10}`))
	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
}

func TestSnapshotRoutes(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/snapshot/restore", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusAccepted, f.do(uploadRequest(t, "sales.csv", testutil.CSV)).Code)
	require.NoError(t, f.Ctrl.Wait())

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/snapshot", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decode[graphtypes.SnapshotResponse](t, rec).ID)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/snapshot/restore", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[graph.Document](t, rec).Nodes, 6)
}

func TestGraphUpdates_SendsInitialAndChanges(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/graph/updates", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 300*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		f.Router.ServeHTTP(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.Notifier.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, f.Ctrl.SetViewport(graph.Viewport{X: 42, Y: 0, Zoom: 1}))

	<-done

	body := rec.Body.String()
	assert.GreaterOrEqual(t, strings.Count(body, "event:"), 2, "initial state plus one change")
	assert.Contains(t, body, "datastar-patch-signals")
	assert.Contains(t, body, `"x":42`)
}

func TestGraphUpdates_InitialStateOnly(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/graph/updates", nil)
	ctx, cancel := context.WithTimeout(req.Context(), 50*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	f.Router.ServeHTTP(rec, req.WithContext(ctx))

	assert.Equal(t, 1, strings.Count(rec.Body.String(), "event:"))
	assert.Equal(t, 0, f.Notifier.Len(), "stream unsubscribes on disconnect")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{graph.ErrNodeNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", graph.ErrQuestionNotFound), http.StatusNotFound},
		{state.ErrNoSnapshot, http.StatusNotFound},
		{graph.ErrNodeLoading, http.StatusConflict},
		{graph.ErrNotHighlighted, http.StatusConflict},
		{graph.ErrNotExplorable, http.StatusConflict},
		{controller.ErrEmptyPrompt, http.StatusUnprocessableEntity},
		{controller.ErrUpload, http.StatusBadGateway},
		{controller.ErrNoSnapshotStore, http.StatusNotImplemented},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
