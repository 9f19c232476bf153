// Package catalog indexes the locally materialized dataset collection.
//
// Artifacts live at <root>/<platform>/<graph_type>/<YYYYMMDD>/ and hold an
// interactions file plus an optional per-node metadata file. The index is a
// pure function of that tree and is read-only once built.
package catalog

import (
	"fmt"
	"sort"

	"fedigraph/internal/errs"
)

const (
	InteractionsFile = "interactions.csv"
	MetadataFile     = "instances.csv"
)

// Key identifies one snapshot in the collection.
type Key struct {
	Platform  string `json:"platform"`
	GraphType string `json:"graph_type"`
	Date      string `json:"date"`
}

func (k Key) String() string {
	return k.Platform + "/" + k.GraphType + "/" + k.Date
}

// Entry is the location of one serialized snapshot.
type Entry struct {
	Key
	Dir              string `json:"dir"`
	InteractionsPath string `json:"interactions_path"`
	// MetadataPath is empty when the snapshot ships without node metadata.
	MetadataPath string `json:"metadata_path,omitempty"`
}

// Catalog maps coordinates to artifact locations.
type Catalog struct {
	root    string
	entries map[Key]Entry
	// platform -> graph type -> ascending dates
	dates map[string]map[string][]string
}

// New creates an empty catalog for root. Build is the usual constructor.
func New(root string) *Catalog {
	return &Catalog{
		root:    root,
		entries: make(map[Key]Entry),
		dates:   make(map[string]map[string][]string),
	}
}

// Add registers an entry. Registering the same key twice with a different
// location fails instead of picking a winner.
func (c *Catalog) Add(e Entry) error {
	if prev, ok := c.entries[e.Key]; ok {
		if prev == e {
			return nil
		}
		return errs.Corrupt(e.Dir, "artifact %s already indexed at %s", e.Key, prev.Dir)
	}
	c.entries[e.Key] = e

	types, ok := c.dates[e.Platform]
	if !ok {
		types = make(map[string][]string)
		c.dates[e.Platform] = types
	}
	dates := types[e.GraphType]
	i := sort.SearchStrings(dates, e.Date)
	dates = append(dates, "")
	copy(dates[i+1:], dates[i:])
	dates[i] = e.Date
	types[e.GraphType] = dates
	return nil
}

func (c *Catalog) Root() string { return c.root }

func (c *Catalog) Len() int { return len(c.entries) }

// Lookup returns the entry for an exact key.
func (c *Catalog) Lookup(k Key) (Entry, bool) {
	e, ok := c.entries[k]
	return e, ok
}

// Entries returns every entry ordered by platform, graph type and date.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.GraphType != b.GraphType {
			return a.GraphType < b.GraphType
		}
		return a.Date < b.Date
	})
	return out
}

// Software lists all platforms present in the collection, sorted.
func (c *Catalog) Software() []string {
	out := make([]string, 0, len(c.dates))
	for p := range c.dates {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// GraphTypes lists the graph types published for platform, sorted.
func (c *Catalog) GraphTypes(platform string) ([]string, error) {
	types, ok := c.dates[platform]
	if !ok {
		return nil, errs.UnknownPlatform(platform, c.Software())
	}
	out := make([]string, 0, len(types))
	for gt := range types {
		out = append(out, gt)
	}
	sort.Strings(out)
	return out, nil
}

// Dates lists the snapshot dates of a graph type, oldest first.
func (c *Catalog) Dates(platform, graphType string) ([]string, error) {
	types, err := c.GraphTypes(platform)
	if err != nil {
		return nil, err
	}
	dates, ok := c.dates[platform][graphType]
	if !ok {
		return nil, errs.UnknownGraphType(platform, graphType, types)
	}
	return append([]string(nil), dates...), nil
}

func (c *Catalog) String() string {
	return fmt.Sprintf("catalog(%s, %d artifacts)", c.root, len(c.entries))
}
