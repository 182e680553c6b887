package graph

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/insightgraph/internal/testutil"
)

type recordingListener struct {
	mu   sync.Mutex
	revs []uint64
}

func (l *recordingListener) GraphChanged(rev uint64) {
	l.mu.Lock()
	l.revs = append(l.revs, rev)
	l.mu.Unlock()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(testutil.NewTestLogger(t))
	require.NoError(t, s.AddNode(NewRoot("hub-1", RootContent{Title: "sales.csv"})))
	require.NoError(t, s.AddNode(NewPlaceholder("p1", KindInsight, Position{X: 10, Y: 20})))
	return s
}

func TestStore_AddNode(t *testing.T) {
	s := newTestStore(t)

	err := s.AddNode(NewPlaceholder("p1", KindInsight, Position{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateNode)

	n, err := s.Node("p1")
	require.NoError(t, err)
	assert.Equal(t, KindInsight, n.Kind)
	assert.True(t, n.Loading())
	assert.Equal(t, 2, s.Snapshot().Len())
}

func TestStore_AddEdge_OccupiesSlots(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(NewPlaceholder("p2", KindDetail, Position{})))

	require.NoError(t, s.AddEdge(NewEdge("hub-1", "p1", SideBottom, SideTop)))
	require.NoError(t, s.AddEdge(NewEdge("p1", "p2", SideLeft, SideRight)))

	p1, err := s.Node("p1")
	require.NoError(t, err)
	assert.Equal(t, SlotOccupied, p1.Anchors.Top)
	assert.Equal(t, SlotOccupied, p1.Anchors.Left)
	assert.Equal(t, SlotFree, p1.Anchors.Bottom)

	p2, err := s.Node("p2")
	require.NoError(t, err)
	assert.Equal(t, SlotOccupied, p2.Anchors.Right)
	assert.Equal(t, 1, p2.Anchors.Occupied())

	edges := s.Snapshot().Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "p1-to-p2", edges[1].ID)
}

func TestStore_AddEdge_Errors(t *testing.T) {
	tests := []struct {
		name    string
		edges   []Edge
		wantErr error
	}{
		{
			name:    "unknown target",
			edges:   []Edge{NewEdge("hub-1", "missing", SideBottom, SideTop)},
			wantErr: ErrNodeNotFound,
		},
		{
			name: "duplicate edge",
			edges: []Edge{
				NewEdge("hub-1", "p1", SideBottom, SideNone),
				NewEdge("hub-1", "p1", SideTop, SideNone),
			},
			wantErr: ErrDuplicateEdge,
		},
		{
			name: "slot reused by a second edge",
			edges: []Edge{
				NewEdge("hub-1", "p1", SideBottom, SideTop),
				NewEdge("p2", "p1", SideBottom, SideTop),
			},
			wantErr: ErrSlotTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, s.AddNode(NewPlaceholder("p2", KindDetail, Position{})))

			var err error
			for _, e := range tt.edges {
				if err = s.AddEdge(e); err != nil {
					break
				}
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStore_Update_AbortsOnError(t *testing.T) {
	s := newTestStore(t)
	before := s.Snapshot()
	rev := s.Revision()

	err := s.Update(func(g Graph) (Graph, error) {
		g, _ = g.WithNode(NewPlaceholder("p9", KindDetail, Position{}))
		return g, errors.New("boom")
	})
	require.Error(t, err)

	assert.Equal(t, rev, s.Revision())
	assert.Equal(t, before.Len(), s.Snapshot().Len())
	_, ok := s.Snapshot().Node("p9")
	assert.False(t, ok)
}

func TestStore_UpdateNode_ShallowMerge(t *testing.T) {
	s := newTestStore(t)
	step := 3

	require.NoError(t, s.UpdateNode("p1", Patch{LoadingStep: &step}))

	n, err := s.Node("p1")
	require.NoError(t, err)
	assert.Equal(t, 3, n.LoadingStep)
	assert.Equal(t, Position{X: 10, Y: 20}, n.Position, "untouched fields are kept")
	assert.True(t, n.Loading())

	err = s.UpdateNode("nope", Patch{LoadingStep: &step})
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestStore_UnchangedNodesKeepIdentity(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddNode(NewPlaceholder("p2", KindInsight, Position{})))
	before := s.Snapshot()

	step := 1
	require.NoError(t, s.UpdateNode("p2", Patch{LoadingStep: &step}))
	after := s.Snapshot()

	b1, _ := before.Node("p1")
	a1, _ := after.Node("p1")
	assert.Same(t, b1, a1)

	b2, _ := before.Node("p2")
	a2, _ := after.Node("p2")
	assert.NotSame(t, b2, a2)
	assert.Equal(t, 0, b2.LoadingStep, "old snapshot is not mutated")
}

func TestStore_FindNodeByServerID(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Update(func(g Graph) (Graph, error) {
		return Bind(g, "p1", "srv-7", FindingContent{Title: "Revenue peaks in Q4"})
	}))

	n, err := s.FindNodeByServerID("srv-7")
	require.NoError(t, err)
	assert.Equal(t, "p1", n.ID)

	_, err = s.FindNodeByServerID("srv-unknown")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestStore_NotifiesListeners(t *testing.T) {
	s := NewStore(nil)
	l := &recordingListener{}
	s.Subscribe(l)

	require.NoError(t, s.AddNode(NewRoot("hub", RootContent{})))
	_ = s.AddNode(NewRoot("hub", RootContent{})) // duplicate, not committed
	s.Reset(New())

	assert.Equal(t, []uint64{1, 2}, l.revs)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.AddNode(NewPlaceholder("p", KindInsight, Position{})))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(func(g Graph) (Graph, error) {
				n, _ := g.Node("p")
				step := n.LoadingStep + 1
				return g.WithPatch("p", Patch{LoadingStep: &step})
			})
		}()
	}
	wg.Wait()

	n, err := s.Node("p")
	require.NoError(t, err)
	assert.Equal(t, 50, n.LoadingStep)
}

func TestGraph_WithPatches(t *testing.T) {
	g := New()
	var err error
	for _, id := range []string{"a", "b", "c"} {
		g, err = g.WithNode(NewPlaceholder(id, KindInsight, Position{}))
		require.NoError(t, err)
	}

	one, two := 1, 2
	next, err := g.WithPatches(map[string]Patch{
		"a": {LoadingStep: &one},
		"c": {LoadingStep: &two},
	})
	require.NoError(t, err)

	a, _ := next.Node("a")
	c, _ := next.Node("c")
	assert.Equal(t, 1, a.LoadingStep)
	assert.Equal(t, 2, c.LoadingStep)

	b1, _ := g.Node("b")
	b2, _ := next.Node("b")
	assert.Same(t, b1, b2, "untouched node keeps its pointer")

	old, _ := g.Node("a")
	assert.Equal(t, 0, old.LoadingStep, "the original graph is unchanged")

	_, err = next.WithPatches(map[string]Patch{"missing": {LoadingStep: &one}})
	assert.ErrorIs(t, err, ErrNodeNotFound)

	same, err := next.WithPatches(nil)
	require.NoError(t, err)
	assert.Equal(t, next.Len(), same.Len())
}
