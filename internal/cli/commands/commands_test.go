package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/insightgraph/internal/analysis/analysistest"
	"github.com/leapstack-labs/insightgraph/internal/cli/config"
	"github.com/leapstack-labs/insightgraph/internal/cli/output"
	"github.com/leapstack-labs/insightgraph/internal/cli/testutil"
	"github.com/leapstack-labs/insightgraph/internal/graph"
	"github.com/leapstack-labs/insightgraph/internal/state"
)

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()

	assert.Equal(t, "serve", cmd.Use)
	assert.Equal(t, []string{"ui"}, cmd.Aliases)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	for _, flag := range []string{"host", "port", "no-browser", "watch-dir", "dev"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewExploreCommand(t *testing.T) {
	cmd := NewExploreCommand()

	assert.Equal(t, "explore <file.csv>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	for _, flag := range []string{"timeout", "broad", "save"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Error(t, cmd.Args(cmd, nil), "a file argument is required")
}

func TestNewSnapshotCommand(t *testing.T) {
	cmd := NewSnapshotCommand()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "history", "export", "prune"}, names)
}

// setupProject starts a backend with five first-ring findings and loads a
// project config pointing at it.
func setupProject(t *testing.T) (*testutil.Project, *analysistest.Backend) {
	t.Helper()

	backend := analysistest.New(t)
	backend.SetHubItems("hub-1",
		analysistest.Item("a", "Revenue by region"),
		analysistest.Item("b", "Seasonality"),
		analysistest.Item("c", "Outliers"),
		analysistest.Item("d", "Correlations"),
		analysistest.Item("e", "Summary"),
	)

	project := testutil.SetupTestProject(t, backend.URL())
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	_, err := config.LoadConfig(project.ConfigPath, nil)
	require.NoError(t, err)
	return project, backend
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestExplore_PrintsInsights(t *testing.T) {
	project, backend := setupProject(t)

	out, err := execute(t, NewExploreCommand(), project.DataPath)
	require.NoError(t, err)

	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# sales.csv")
	assert.Contains(t, out, "5 of 5 insights bound")
	for _, title := range []string{"Revenue by region", "Seasonality", "Outliers", "Correlations", "Summary"} {
		assert.Contains(t, out, title)
	}
	require.Len(t, backend.Uploads(), 1)
	assert.Equal(t, "sales.csv", backend.Uploads()[0].Filename)

	_, err = os.Stat(project.StatePath)
	assert.True(t, os.IsNotExist(err), "nothing is saved without --save")
}

func TestExplore_BroadSaveAndSnapshots(t *testing.T) {
	project, backend := setupProject(t)
	for _, parent := range []string{"a", "b", "c", "d", "e"} {
		backend.SetDetails(parent,
			analysistest.Item(parent+"-1", "Detail "+parent+"1"),
			analysistest.Item(parent+"-2", "Detail "+parent+"2"),
			analysistest.Item(parent+"-3", "Detail "+parent+"3"),
		)
	}

	out, err := execute(t, NewExploreCommand(), project.DataPath, "--broad", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Detail a1")
	assert.Contains(t, out, "Snapshot saved: ")

	t.Run("list", func(t *testing.T) {
		out, err := execute(t, NewSnapshotCommand(), "list")
		require.NoError(t, err)
		assert.Contains(t, out, "# Snapshots (1)")
		assert.Contains(t, out, "| "+state.DefaultKey+" | 21 | 20 |")
	})

	t.Run("show", func(t *testing.T) {
		out, err := execute(t, NewSnapshotCommand(), "show")
		require.NoError(t, err)
		assert.Contains(t, out, "- **Nodes:** 21")
		assert.Contains(t, out, "Detail e3")
	})

	t.Run("export yaml", func(t *testing.T) {
		file := filepath.Join(project.Dir, "flow.yaml")
		_, err := execute(t, NewSnapshotCommand(), "export", "--format", "yaml", "--file", file)
		require.NoError(t, err)

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		var snap state.Snapshot
		require.NoError(t, yaml.Unmarshal(data, &snap))
		assert.Equal(t, state.DefaultKey, snap.Key)
		assert.Len(t, snap.Document.Nodes, 21)
		_, err = graph.FromDocument(snap.Document)
		assert.NoError(t, err)
	})

	t.Run("history and prune", func(t *testing.T) {
		out, err := execute(t, NewSnapshotCommand(), "history")
		require.NoError(t, err)
		assert.Contains(t, out, "# History of flow (1)")

		out, err = execute(t, NewSnapshotCommand(), "prune", "--keep", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "Pruned 1 history entries of flow")
	})
}

func TestExplore_BackendDown(t *testing.T) {
	project, backend := setupProject(t)
	backend.FailStart(true)

	_, err := execute(t, NewExploreCommand(), project.DataPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload failed")
}

func TestExplore_MissingFile(t *testing.T) {
	setupProject(t)

	_, err := execute(t, NewExploreCommand(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSnapshotShow_Empty(t *testing.T) {
	setupProject(t)

	_, err := execute(t, NewSnapshotCommand(), "show")
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrNoSnapshot)
}

func TestRenderSummaries_JSON(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeJSON, false)

	require.NoError(t, renderSummaries(tr.Renderer, "Snapshots", nil))
	assert.Equal(t, "[]", strings.TrimSpace(tr.Output()))
	assert.Empty(t, tr.ErrorOutput())
}

func TestRenderNodes_SkipsRoot(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeMarkdown, false)
	doc := graph.Document{Nodes: []graph.DocNode{
		{ID: "root", Kind: graph.KindRoot, Title: "sales.csv"},
		{ID: "n1", Kind: graph.KindInsight, Phase: graph.PhasePopulated, Title: "Seasonality"},
	}}

	renderNodes(tr.Renderer, doc)
	assert.NotContains(t, tr.Output(), "sales.csv")
	assert.Contains(t, tr.Output(), "| n1 | insight | populated | Seasonality |")
}

func TestExportSnapshot(t *testing.T) {
	snap := &state.Snapshot{Summary: state.Summary{ID: "s1", Key: "flow", NodeCount: 1}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, exportSnapshot(&buf, snap, "json"))
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "s1", got["id"])
	})

	t.Run("yaml inlines the summary", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, exportSnapshot(&buf, snap, "yaml"))
		assert.Contains(t, buf.String(), "id: s1\n")
		assert.NotContains(t, buf.String(), "summary:")
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, exportSnapshot(&bytes.Buffer{}, snap, "xml"))
	})
}
