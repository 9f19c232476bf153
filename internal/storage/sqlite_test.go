package storage

import (
	"context"
	"path/filepath"
	"testing"

	"fedigraph/internal/catalog"
	"fedigraph/internal/graph"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testGraph() *graph.Graph {
	g := graph.NewGraph()
	g.AddEdge("b.social", "a.social", 2)
	g.AddEdge("a.social", "c.social", 0.25)
	g.SetAttributes("a.social", map[string]string{"users": "10", "software_version": "4.3.0"})
	g.SetAttributes("z.social", map[string]string{"users": "1"})
	return g
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	key := catalog.Key{Platform: "mastodon", GraphType: "federation", Date: "20250324"}

	g := testGraph()
	require.NoError(t, store.SaveSnapshot(ctx, key, g))

	loaded, err := store.LoadSnapshot(ctx, key)
	require.NoError(t, err)
	if diff := cmp.Diff(g, loaded, cmpopts.IgnoreUnexported(graph.Graph{})); diff != "" {
		t.Errorf("loaded snapshot differs (-saved +loaded):\n%s", diff)
	}

	w, ok := loaded.Weight("a.social", "c.social")
	assert.True(t, ok, "edge index is rebuilt")
	assert.Equal(t, 0.25, w)
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	key := catalog.Key{Platform: "mastodon", GraphType: "federation", Date: "20250324"}

	require.NoError(t, store.SaveSnapshot(ctx, key, testGraph()))

	g2 := graph.NewGraph()
	g2.AddEdge("x", "y", 1)
	require.NoError(t, store.SaveSnapshot(ctx, key, g2))

	loaded, err := store.LoadSnapshot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, loaded.NodeIDs())
	assert.Len(t, loaded.Edges, 1)

	infos, err := store.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 2, infos[0].Nodes)
	assert.Equal(t, 1, infos[0].Edges)
	assert.False(t, infos[0].StoredAt.IsZero())
}

func TestSQLiteStore_ListSnapshotsOrdered(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	keys := []catalog.Key{
		{Platform: "peertube", GraphType: "follow", Date: "20250324"},
		{Platform: "lemmy", GraphType: "federation", Date: "20250101"},
		{Platform: "peertube", GraphType: "follow", Date: "20250101"},
	}
	for _, k := range keys {
		require.NoError(t, store.SaveSnapshot(ctx, k, graph.NewGraph()))
	}

	infos, err := store.ListSnapshots(ctx)
	require.NoError(t, err)
	var got []string
	for _, info := range infos {
		got = append(got, info.Key.String())
	}
	assert.Equal(t, []string{
		"lemmy/federation/20250101",
		"peertube/follow/20250101",
		"peertube/follow/20250324",
	}, got)
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	store := openStore(t)

	_, err := store.LoadSnapshot(context.Background(), catalog.Key{Platform: "a", GraphType: "b", Date: "20250101"})
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
