// Package analysistest provides an in-process analysis backend for tests.
package analysistest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/insightgraph/internal/analysis"
)

// Upload records one call to the session start endpoint.
type Upload struct {
	Filename  string
	Data      string
	SessionID string
}

// Backend serves the analysis API from in-memory fixtures. Unknown ids
// answer 404.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	session   analysis.Session
	failStart bool
	hubItems  map[string][]analysis.Item
	questions map[string]analysis.Item
	prompted  map[string]analysis.Item
	details   map[string][]analysis.Item
	uploads   []Upload
	prompts   []string
	hits      map[string]int
}

// New starts a backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		session:   analysis.Session{Session: "session-1", Hub: "hub-1"},
		hubItems:  make(map[string][]analysis.Item),
		questions: make(map[string]analysis.Item),
		prompted:  make(map[string]analysis.Item),
		details:   make(map[string][]analysis.Item),
		hits:      make(map[string]int),
	}

	r := chi.NewRouter()
	r.Post("/session/start", b.startSession)
	r.Get("/hubs/{hub}/nodes", b.hubNodes)
	r.Get("/question/{id}", b.question)
	r.Post("/question/from/{id}", b.questionFrom)
	r.Get("/l2nodes/{id}", b.l2nodes)

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the base url of the backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

// SetSession sets the ids returned by the next session start.
func (b *Backend) SetSession(session, hub string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = analysis.Session{Session: session, Hub: hub}
}

// FailStart makes session start answer 500.
func (b *Backend) FailStart(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStart = fail
}

// SetHubItems replaces the cumulative item list of hub.
func (b *Backend) SetHubItems(hub string, items ...analysis.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hubItems[hub] = items
}

// SetQuestion registers the finding a question resolves to.
func (b *Backend) SetQuestion(id string, item analysis.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.questions[id] = item
}

// SetPrompted registers the finding generated for prompts on parent.
func (b *Backend) SetPrompted(parent string, item analysis.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompted[parent] = item
}

// SetDetails registers the broad follow-ups of parent.
func (b *Backend) SetDetails(parent string, items ...analysis.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.details[parent] = items
}

// Uploads returns the recorded uploads.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

// Prompts returns the prompt bodies received.
func (b *Backend) Prompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.prompts...)
}

// Hits returns how many times a route pattern was served, e.g.
// "/hubs/{hub}/nodes".
func (b *Backend) Hits(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[pattern]
}

func (b *Backend) count(r *http.Request) {
	b.hits[chi.RouteContext(r.Context()).RoutePattern()]++
}

func (b *Backend) startSession(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count(r)

	if b.failStart {
		http.Error(w, "analysis unavailable", http.StatusInternalServerError)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = f.Close() }()
	data, _ := io.ReadAll(f)
	b.uploads = append(b.uploads, Upload{
		Filename:  hdr.Filename,
		Data:      string(data),
		SessionID: r.FormValue("session_id"),
	})
	writeJSON(w, b.session)
}

func (b *Backend) hubNodes(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count(r)

	items, ok := b.hubItems[chi.URLParam(r, "hub")]
	if !ok {
		items = []analysis.Item{}
	}
	writeJSON(w, items)
}

func (b *Backend) question(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count(r)

	it, ok := b.questions[chi.URLParam(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, it)
}

func (b *Backend) questionFrom(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count(r)

	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	b.prompts = append(b.prompts, body.Prompt)

	it, ok := b.prompted[chi.URLParam(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, it)
}

func (b *Backend) l2nodes(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count(r)

	items, ok := b.details[chi.URLParam(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, items)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Item is a shorthand for a finding with the given id and title.
func Item(id, title string, questions ...analysis.Question) analysis.Item {
	return analysis.Item{
		ID:        id,
		Title:     title,
		Text:      "text of " + title,
		ThreadID:  "thread-" + id,
		Questions: questions,
		Images:    []analysis.Image{},
	}
}
