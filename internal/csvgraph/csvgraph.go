// Package csvgraph reads the CSV serialization used by the dataset:
// an edge list (Source, Target, Weight) and an optional node metadata
// table keyed by its first column.
package csvgraph

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"fedigraph/internal/errs"
	"fedigraph/internal/graph"
)

const (
	ColSource = "Source"
	ColTarget = "Target"
	ColWeight = "Weight"

	// DefaultWeight is used when the edge list has no Weight column.
	DefaultWeight = 1.0
)

// Parser implements the materializer's parse capability.
type Parser struct{}

func (Parser) Parse(interactionsPath, metadataPath string) (*graph.Graph, error) {
	return Parse(interactionsPath, metadataPath)
}

// Parse builds a graph from an edge list and, when metadataPath is not
// empty, attaches every metadata column to the node named by the key
// column. Hosts that appear only in the metadata become isolated nodes.
func Parse(interactionsPath, metadataPath string) (*graph.Graph, error) {
	g := graph.NewGraph()
	if err := readEdges(interactionsPath, g); err != nil {
		return nil, err
	}
	if metadataPath == "" {
		return g, nil
	}

	table, err := ReadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		attrs := make(map[string]string, len(table.Columns)-1)
		for j := 1; j < len(table.Columns); j++ {
			attrs[table.Columns[j]] = row[j]
		}
		g.SetAttributes(row[0], attrs)
	}
	return g, nil
}

func readEdges(path string, g *graph.Graph) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Parse(path, 0, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := readHeader(r, path)
	if err != nil {
		return err
	}
	src, dst, weight := -1, -1, -1
	for i, col := range header {
		switch col {
		case ColSource:
			src = i
		case ColTarget:
			dst = i
		case ColWeight:
			weight = i
		}
	}
	if src < 0 || dst < 0 {
		return errs.Parse(path, 1, fmt.Errorf("header %v lacks %s/%s columns", header, ColSource, ColTarget))
	}

	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errs.Parse(path, 0, err)
		}

		from, to := rec[src], rec[dst]
		if from == "" || to == "" {
			return errs.Parse(path, line, errors.New("empty endpoint"))
		}
		w := DefaultWeight
		if weight >= 0 {
			w, err = strconv.ParseFloat(strings.TrimSpace(rec[weight]), 64)
			if err != nil {
				return errs.Parse(path, line, fmt.Errorf("weight: %w", err))
			}
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return errs.Parse(path, line, fmt.Errorf("weight %q is not finite", rec[weight]))
			}
		}
		g.AddEdge(from, to, w)
	}
}

// ReadMetadata reads a node metadata table. The first column is the node
// key and must be unique and non-empty.
func ReadMetadata(path string) (*graph.MetadataTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Parse(path, 0, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := readHeader(r, path)
	if err != nil {
		return nil, err
	}

	table := &graph.MetadataTable{Columns: append([]string(nil), header...)}
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		if err != nil {
			return nil, errs.Parse(path, 0, err)
		}

		key := rec[0]
		if key == "" {
			return nil, errs.Parse(path, line, fmt.Errorf("empty %s", header[0]))
		}
		if seen[key] {
			return nil, errs.Parse(path, line, fmt.Errorf("duplicate %s %q", header[0], key))
		}
		seen[key] = true
		table.Rows = append(table.Rows, rec)
	}
}

func readHeader(r *csv.Reader, path string) ([]string, error) {
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errs.Parse(path, 1, errors.New("missing header"))
	}
	if err != nil {
		return nil, errs.Parse(path, 0, err)
	}
	header = append([]string(nil), header...)
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
}
