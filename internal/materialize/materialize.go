// Package materialize turns a resolved catalog entry into an in-memory graph.
package materialize

import (
	"fedigraph/internal/catalog"
	"fedigraph/internal/csvgraph"
	"fedigraph/internal/errs"
	"fedigraph/internal/graph"
)

// Parser deserializes one artifact. Implementations report failures with
// errs.ErrParse.
type Parser interface {
	Parse(interactionsPath, metadataPath string) (*graph.Graph, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(interactionsPath, metadataPath string) (*graph.Graph, error)

func (f ParserFunc) Parse(interactionsPath, metadataPath string) (*graph.Graph, error) {
	return f(interactionsPath, metadataPath)
}

type Materializer struct {
	parser Parser
}

// New returns a materializer using p, or the CSV parser when p is nil.
func New(p Parser) *Materializer {
	if p == nil {
		p = csvgraph.Parser{}
	}
	return &Materializer{parser: p}
}

// Load deserializes the artifact behind e. Every failure is reported as
// errs.ErrMalformedArtifact and leaves the rest of the catalog usable.
func (m *Materializer) Load(e catalog.Entry) (*graph.Graph, error) {
	g, err := m.parser.Parse(e.InteractionsPath, e.MetadataPath)
	if err != nil {
		return nil, errs.Malformed(e.Dir, err)
	}
	return g, nil
}

// LoadMetadata reads the node metadata table of e. Snapshots without a
// metadata file yield an empty table.
func (m *Materializer) LoadMetadata(e catalog.Entry) (*graph.MetadataTable, error) {
	if e.MetadataPath == "" {
		return &graph.MetadataTable{}, nil
	}
	table, err := csvgraph.ReadMetadata(e.MetadataPath)
	if err != nil {
		return nil, errs.Malformed(e.Dir, err)
	}
	return table, nil
}
