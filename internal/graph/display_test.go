package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedGraph(t *testing.T) Graph {
	t.Helper()
	g := New()
	var err error
	g, err = g.WithNode(NewRoot("hub", RootContent{Title: "data.csv"}))
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		g, err = g.WithNode(NewPlaceholder(id, KindInsight, Position{}))
		require.NoError(t, err)
	}
	g, err = Bind(g, "a", "srv-a", FindingContent{
		Title: "A",
		Body:  "body a",
		Questions: []Question{
			{ID: "q1", Content: "Why?"},
			{ID: "q2", Content: "How?"},
		},
	})
	require.NoError(t, err)
	g, err = Bind(g, "b", "srv-b", FindingContent{Title: "B"})
	require.NoError(t, err)
	return g
}

func countHighlighted(g Graph) int {
	n := 0
	for _, node := range g.Nodes() {
		if node.Display.Highlighted {
			n++
		}
	}
	return n
}

func TestBind(t *testing.T) {
	g := populatedGraph(t)

	a, _ := g.Node("a")
	assert.Equal(t, PhasePopulated, a.Phase)
	assert.Equal(t, "srv-a", a.ServerID)
	assert.Equal(t, "A", a.Title())
	assert.Equal(t, "body a", a.Body())

	_, err := Bind(g, "a", "srv-x", FindingContent{})
	assert.ErrorIs(t, err, ErrAlreadyPopulated)

	_, err = Bind(g, "zz", "srv-x", FindingContent{})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	c, _ := g.Node("c")
	assert.Equal(t, LoadingTitle, c.Title())
	assert.Equal(t, LoadingText(0), c.Body())
}

func TestToggleExpanded(t *testing.T) {
	g := populatedGraph(t)

	g, err := ToggleExpanded(g, "a")
	require.NoError(t, err)
	a, _ := g.Node("a")
	assert.True(t, a.Display.Expanded)

	g, err = ToggleExpanded(g, "a")
	require.NoError(t, err)
	a, _ = g.Node("a")
	assert.False(t, a.Display.Expanded)

	_, err = ToggleExpanded(g, "c")
	assert.ErrorIs(t, err, ErrNodeLoading)
}

func TestHighlight_Exclusive(t *testing.T) {
	g := populatedGraph(t)

	for _, id := range []string{"a", "b", "hub", "a"} {
		var err error
		g, err = Highlight(g, id)
		require.NoError(t, err)
		assert.Equal(t, 1, countHighlighted(g), "after highlighting %s", id)

		h, ok := Highlighted(g)
		require.True(t, ok)
		assert.Equal(t, id, h.ID)
	}

	g = ClearHighlight(g)
	assert.Equal(t, 0, countHighlighted(g))

	_, err := Highlight(g, "missing")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestHighlight_RejectsLoading(t *testing.T) {
	g := populatedGraph(t)
	g, err := Highlight(g, "a")
	require.NoError(t, err)

	next, err := Highlight(g, "c")
	assert.ErrorIs(t, err, ErrNodeLoading)

	h, ok := Highlighted(next)
	require.True(t, ok)
	assert.Equal(t, "a", h.ID, "the previous highlight survives")
}

func TestHighlight_KeepsUntouchedPointers(t *testing.T) {
	g := populatedGraph(t)
	g, err := Highlight(g, "a")
	require.NoError(t, err)

	next, err := Highlight(g, "b")
	require.NoError(t, err)

	c1, _ := g.Node("c")
	c2, _ := next.Node("c")
	assert.Same(t, c1, c2)
}

func TestCheckExplorable(t *testing.T) {
	g := populatedGraph(t)
	g, err := Highlight(g, "a")
	require.NoError(t, err)

	tests := []struct {
		id      string
		wantErr error
	}{
		{id: "a"},
		{id: "b", wantErr: ErrNotHighlighted},
		{id: "c", wantErr: ErrNodeLoading},
		{id: "hub", wantErr: ErrNotExplorable},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			n, ok := g.Node(tt.id)
			require.True(t, ok)
			err := CheckExplorable(n)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRemoveQuestion(t *testing.T) {
	g := populatedGraph(t)
	before, _ := g.Node("a")

	g, err := RemoveQuestion(g, "a", "q1")
	require.NoError(t, err)

	a, _ := g.Node("a")
	f, ok := a.Finding()
	require.True(t, ok)
	assert.Equal(t, []Question{{ID: "q2", Content: "How?"}}, f.Questions)

	old, _ := before.Finding()
	assert.Len(t, old.Questions, 2, "previous revision keeps its questions")

	_, err = RemoveQuestion(g, "a", "q1")
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestLoadingText(t *testing.T) {
	assert.Equal(t, "Step 1/9: Uploading file", LoadingText(0))
	assert.Equal(t, "Step 1/9: Uploading file", LoadingText(-4))
	assert.Equal(t, "Step 9/9: Almost there please be patient", LoadingText(LastLoadingStep()))
	assert.Equal(t, LoadingText(LastLoadingStep()), LoadingText(99))
}
