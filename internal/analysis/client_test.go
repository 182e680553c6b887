package analysis_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/insightgraph/internal/analysis"
	"github.com/leapstack-labs/insightgraph/internal/analysis/analysistest"
	"github.com/leapstack-labs/insightgraph/internal/testutil"
)

func newClient(t *testing.T, baseURL string) *analysis.Client {
	t.Helper()
	c, err := analysis.NewClient(analysis.Config{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr string
	}{
		{name: "empty", baseURL: "", wantErr: "backend url is required"},
		{name: "no scheme", baseURL: "localhost:8000", wantErr: "scheme must be http or https"},
		{name: "ftp", baseURL: "ftp://example.com", wantErr: "scheme must be http or https"},
		{name: "valid", baseURL: "http://localhost:8000/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analysis.NewClient(analysis.Config{BaseURL: tt.baseURL})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_StartSession(t *testing.T) {
	backend := analysistest.New(t)
	backend.SetSession("s-42", "hub-42")
	c := newClient(t, backend.URL())

	s, err := c.StartSession(context.Background(), "sales.csv", strings.NewReader("a,b\n1,2\n"), "")
	require.NoError(t, err)
	assert.Equal(t, analysis.Session{Session: "s-42", Hub: "hub-42"}, s)

	_, err = c.StartSession(context.Background(), "more.csv", strings.NewReader("x\n"), "s-42")
	require.NoError(t, err)

	uploads := backend.Uploads()
	require.Len(t, uploads, 2)
	assert.Equal(t, "sales.csv", uploads[0].Filename)
	assert.Equal(t, "a,b\n1,2\n", uploads[0].Data)
	assert.Empty(t, uploads[0].SessionID)
	assert.Equal(t, "s-42", uploads[1].SessionID)
}

func TestClient_StartSession_Failure(t *testing.T) {
	backend := analysistest.New(t)
	backend.FailStart(true)
	c := newClient(t, backend.URL())

	_, err := c.StartSession(context.Background(), "sales.csv", strings.NewReader("a\n"), "")
	require.Error(t, err)

	var se *analysis.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "analysis unavailable", se.Body)
}

func TestClient_StartSession_MissingHub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"session":"s"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).StartSession(context.Background(), "a.csv", strings.NewReader(""), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hub id")
}

func TestClient_HubNodes(t *testing.T) {
	backend := analysistest.New(t)
	parent := "root"
	items := []analysis.Item{
		analysistest.Item("n1", "Sales grow", analysis.Question{ID: "q1", Content: "By region?"}),
		analysistest.Item("n2", "Churn is flat"),
	}
	items[1].ParentNodeID = &parent
	items[1].Images = []analysis.Image{{ID: "img", URL: "http://img/1.png"}}
	backend.SetHubItems("hub-1", items...)
	c := newClient(t, backend.URL())

	got, err := c.HubNodes(context.Background(), "hub-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].ID)
	assert.Nil(t, got[0].ParentNodeID)

	f := got[1].Finding()
	assert.Equal(t, "Churn is flat", f.Title)
	assert.Equal(t, "text of Churn is flat", f.Body)
	assert.Equal(t, []string{"http://img/1.png"}, f.Images)
	assert.Equal(t, "root", f.ParentServerID)

	empty, err := c.HubNodes(context.Background(), "hub-unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestClient_Question(t *testing.T) {
	backend := analysistest.New(t)
	backend.SetQuestion("q1", analysistest.Item("d1", "Regional split"))
	c := newClient(t, backend.URL())

	it, err := c.Question(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "d1", it.ID)

	_, err = c.Question(context.Background(), "q-missing")
	var se *analysis.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestClient_Prompted(t *testing.T) {
	backend := analysistest.New(t)
	backend.SetPrompted("n1", analysistest.Item("d2", "Answer"))
	c := newClient(t, backend.URL())

	it, err := c.Prompted(context.Background(), "n1", "what about returns?")
	require.NoError(t, err)
	assert.Equal(t, "d2", it.ID)
	assert.Equal(t, []string{"what about returns?"}, backend.Prompts())
}

func TestClient_DetailNodes(t *testing.T) {
	backend := analysistest.New(t)
	backend.SetDetails("n1",
		analysistest.Item("d1", "one"),
		analysistest.Item("d2", "two"),
		analysistest.Item("d3", "three"),
	)
	c := newClient(t, backend.URL())

	items, err := c.DetailNodes(context.Background(), "n1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "d3", items[2].ID)
	assert.Equal(t, 1, backend.Hits("/l2nodes/{id}"))
}

func TestClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).DetailNodes(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ContextCanceled(t *testing.T) {
	backend := analysistest.New(t)
	c := newClient(t, backend.URL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.HubNodes(ctx, "hub-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
