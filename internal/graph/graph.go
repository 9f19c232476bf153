package graph

import "sort"

type edgeKey struct {
	from, to string
}

// Graph is an attributed interaction graph. Edges keep the orientation
// recorded in the artifact (From is the Source column); callers that want
// undirected semantics use Neighbors.
type Graph struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []Edge           `json:"edges"`

	// (from, to) -> position in Edges
	edgeIndex map[edgeKey]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[string]*Node),
		Edges:     []Edge{},
		edgeIndex: make(map[edgeKey]int),
	}
}

// AddNode returns the node with the given id, creating it if needed.
func (g *Graph) AddNode(id string) *Node {
	if n, ok := g.Nodes[id]; ok {
		return n
	}
	n := &Node{ID: id}
	g.Nodes[id] = n
	return n
}

// SetAttributes merges attrs into the node's attributes, creating the node
// if it does not exist yet.
func (g *Graph) SetAttributes(id string, attrs map[string]string) {
	n := g.AddNode(id)
	if len(attrs) == 0 {
		return
	}
	if n.Attributes == nil {
		n.Attributes = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		n.Attributes[k] = v
	}
}

// AddEdge records an interaction. Both endpoints are created on demand.
// A repeated (from, to) pair replaces the weight of the first occurrence.
func (g *Graph) AddEdge(from, to string, weight float64) {
	g.AddNode(from)
	g.AddNode(to)

	key := edgeKey{from, to}
	if i, ok := g.edgeIndex[key]; ok {
		g.Edges[i].Weight = weight
		return
	}
	g.edgeIndex[key] = len(g.Edges)
	g.Edges = append(g.Edges, Edge{From: from, To: to, Weight: weight})
}

// Weight returns the weight of the edge from -> to.
func (g *Graph) Weight(from, to string) (float64, bool) {
	i, ok := g.edgeIndex[edgeKey{from, to}]
	if !ok {
		return 0, false
	}
	return g.Edges[i].Weight, true
}

// RebuildIndices must be called after Edges is modified directly, e.g. after
// decoding a graph from JSON or a database.
func (g *Graph) RebuildIndices() {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	g.edgeIndex = make(map[edgeKey]int, len(g.Edges))
	for i, e := range g.Edges {
		g.edgeIndex[edgeKey{e.From, e.To}] = i
	}
}

// Successors returns the nodes that id has recorded interactions towards.
func (g *Graph) Successors(id string) []*Node {
	var out []*Node
	for _, edge := range g.Edges {
		if edge.From == id {
			if node, ok := g.Nodes[edge.To]; ok {
				out = append(out, node)
			}
		}
	}
	return out
}

// Predecessors returns the nodes with recorded interactions towards id.
func (g *Graph) Predecessors(id string) []*Node {
	var out []*Node
	for _, edge := range g.Edges {
		if edge.To == id {
			if node, ok := g.Nodes[edge.From]; ok {
				out = append(out, node)
			}
		}
	}
	return out
}

// Neighbors returns the sorted ids adjacent to id in either direction.
func (g *Graph) Neighbors(id string) []string {
	seen := make(map[string]bool)
	for _, edge := range g.Edges {
		switch id {
		case edge.From:
			seen[edge.To] = true
		case edge.To:
			seen[edge.From] = true
		}
	}
	return sortedKeys(seen)
}

// NodeIDs returns all node ids in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Graph) Stats() Stats {
	connected := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		connected[e.From] = true
		connected[e.To] = true
	}
	return Stats{
		Nodes:         len(g.Nodes),
		Edges:         len(g.Edges),
		IsolatedNodes: len(g.Nodes) - len(connected),
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
