package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_AddEdge(t *testing.T) {
	g := NewGraph()

	g.AddEdge("a.social", "b.social", 3)
	g.AddEdge("b.social", "c.social", 1)
	g.AddEdge("a.social", "c.social", 2)
	g.SetAttributes("d.social", map[string]string{"users": "12"})

	t.Run("Endpoints are created", func(t *testing.T) {
		assert.Equal(t, []string{"a.social", "b.social", "c.social", "d.social"}, g.NodeIDs())
		assert.Len(t, g.Edges, 3)
	})

	t.Run("Orientation is kept", func(t *testing.T) {
		succ := g.Successors("a.social")
		require.Len(t, succ, 2)
		assert.Equal(t, "b.social", succ[0].ID)
		assert.Equal(t, "c.social", succ[1].ID)

		pred := g.Predecessors("c.social")
		require.Len(t, pred, 2)
		assert.Empty(t, g.Predecessors("a.social"))
	})

	t.Run("Neighbors ignore direction", func(t *testing.T) {
		assert.Equal(t, []string{"a.social", "b.social"}, g.Neighbors("c.social"))
		assert.Empty(t, g.Neighbors("d.social"))
	})

	t.Run("Repeated pair replaces weight", func(t *testing.T) {
		g.AddEdge("a.social", "b.social", 7)
		assert.Len(t, g.Edges, 3)
		w, ok := g.Weight("a.social", "b.social")
		assert.True(t, ok)
		assert.Equal(t, 7.0, w)

		_, ok = g.Weight("b.social", "a.social")
		assert.False(t, ok, "reverse direction is a different edge")
	})

	t.Run("Stats", func(t *testing.T) {
		assert.Equal(t, Stats{Nodes: 4, Edges: 3, IsolatedNodes: 1}, g.Stats())
	})
}

func TestGraph_SetAttributesMerges(t *testing.T) {
	g := NewGraph()
	g.SetAttributes("x", map[string]string{"users": "1"})
	g.SetAttributes("x", map[string]string{"version": "4.2"})
	g.SetAttributes("x", nil)

	assert.Equal(t, map[string]string{"users": "1", "version": "4.2"}, g.Nodes["x"].Attributes)
}

func TestGraph_RebuildIndices(t *testing.T) {
	g := &Graph{Edges: []Edge{{From: "a", To: "b", Weight: 1}}}
	g.RebuildIndices()

	w, ok := g.Weight("a", "b")
	require.True(t, ok)
	assert.Equal(t, 1.0, w)
	assert.NotNil(t, g.Nodes)
}

func TestMetadataTable_Record(t *testing.T) {
	table := &MetadataTable{
		Columns: []string{"host", "users"},
		Rows:    [][]string{{"a.social", "10"}, {"b.social"}},
	}
	assert.Equal(t, map[string]string{"host": "a.social", "users": "10"}, table.Record(0))
	assert.Equal(t, map[string]string{"host": "b.social"}, table.Record(1))
}
