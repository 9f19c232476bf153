package graph

// Node is a server (instance) in an interaction graph. Attributes hold the
// metadata recorded for the server when the snapshot was taken; the set of
// keys is defined by the dataset.
type Node struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Edge is one recorded interaction between two servers.
type Edge struct {
	From   string  `json:"source"`
	To     string  `json:"target"`
	Weight float64 `json:"weight"`
}

// MetadataTable is the per-node metadata of a snapshot in tabular form.
// Columns[0] is the node key column.
type MetadataTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Record returns row i as a column -> value map.
func (t *MetadataTable) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.Columns))
	for j, col := range t.Columns {
		if j < len(t.Rows[i]) {
			rec[col] = t.Rows[i][j]
		}
	}
	return rec
}

// Stats summarizes a graph for listings.
type Stats struct {
	Nodes         int `json:"nodes"`
	Edges         int `json:"edges"`
	IsolatedNodes int `json:"isolated_nodes"`
}
