package fedigraph

import (
	"fedigraph/internal/catalog"
	"fedigraph/internal/errs"
	"fedigraph/internal/graph"
	"fedigraph/internal/resolver"
)

type (
	Graph         = graph.Graph
	Node          = graph.Node
	Edge          = graph.Edge
	MetadataTable = graph.MetadataTable

	Key   = catalog.Key
	Entry = catalog.Entry
)

// Latest may be passed as a date to select the most recent snapshot.
const Latest = resolver.Latest

var (
	ErrFetch             = errs.ErrFetch
	ErrCorruptDataset    = errs.ErrCorruptDataset
	ErrUnknownPlatform   = errs.ErrUnknownPlatform
	ErrUnknownGraphType  = errs.ErrUnknownGraphType
	ErrUnknownDate       = errs.ErrUnknownDate
	ErrMalformedArtifact = errs.ErrMalformedArtifact
	ErrParse             = errs.ErrParse
)

// ValidOptions returns the accepted values listed by an unknown platform,
// graph type or date error.
func ValidOptions(err error) []string {
	return errs.Options(err)
}
