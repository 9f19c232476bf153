// Package resolver maps a partial snapshot selection onto exactly one
// catalog entry.
package resolver

import (
	"fedigraph/internal/catalog"
	"fedigraph/internal/errs"
)

// Latest is accepted in place of a date and means the most recent snapshot.
const Latest = "latest"

// Index is the read-only view of the catalog the resolver needs.
type Index interface {
	Dates(platform, graphType string) ([]string, error)
	Lookup(k catalog.Key) (catalog.Entry, bool)
}

// Query selects a snapshot. Date is optional: empty or Latest picks the
// newest snapshot of the graph type.
type Query struct {
	Platform  string
	GraphType string
	Date      string
}

func (q Query) wantsLatest() bool {
	return q.Date == "" || q.Date == Latest
}

// Resolve returns the entry selected by q. Validation runs platform first,
// then graph type, then date, so the error kind always names the first
// coordinate missing from the catalog.
//
// The newest snapshot is the maximum date under string ordering of the
// canonical YYYYMMDD format.
func Resolve(idx Index, q Query) (catalog.Entry, error) {
	dates, err := idx.Dates(q.Platform, q.GraphType)
	if err != nil {
		return catalog.Entry{}, err
	}

	if len(dates) == 0 {
		return catalog.Entry{}, errs.UnknownGraphType(q.Platform, q.GraphType, nil)
	}

	date := q.Date
	if q.wantsLatest() {
		date = dates[len(dates)-1]
	}

	key := catalog.Key{Platform: q.Platform, GraphType: q.GraphType, Date: date}
	e, ok := idx.Lookup(key)
	if !ok {
		return catalog.Entry{}, errs.UnknownDate(q.Platform, q.GraphType, q.Date, dates)
	}
	return e, nil
}
