package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fedigraph/internal/catalog"
	"fedigraph/internal/graph"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ SnapshotStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			platform TEXT NOT NULL,
			graph_type TEXT NOT NULL,
			date TEXT NOT NULL,
			stored_at TEXT NOT NULL,
			UNIQUE (platform, graph_type, date)
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			snapshot_id INTEGER NOT NULL,
			id TEXT NOT NULL,
			attributes JSON,
			PRIMARY KEY (snapshot_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			snapshot_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL,
			weight REAL NOT NULL,
			PRIMARY KEY (snapshot_id, position)
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, key catalog.Key, g *graph.Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Drop the previous copy, if any
	var oldID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM snapshots WHERE platform = ? AND graph_type = ? AND date = ?",
		key.Platform, key.GraphType, key.Date).Scan(&oldID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		for _, q := range []string{
			"DELETE FROM edges WHERE snapshot_id = ?",
			"DELETE FROM nodes WHERE snapshot_id = ?",
			"DELETE FROM snapshots WHERE id = ?",
		} {
			if _, err := tx.ExecContext(ctx, q, oldID); err != nil {
				return err
			}
		}
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO snapshots (platform, graph_type, date, stored_at) VALUES (?, ?, ?, ?)",
		key.Platform, key.GraphType, key.Date, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	// 2. Save Nodes
	nodeStmt, err := tx.PrepareContext(ctx, "INSERT INTO nodes (snapshot_id, id, attributes) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	for _, nodeID := range g.NodeIDs() {
		var attrs []byte
		if a := g.Nodes[nodeID].Attributes; len(a) > 0 {
			if attrs, err = json.Marshal(a); err != nil {
				return err
			}
		}
		if _, err := nodeStmt.ExecContext(ctx, id, nodeID, attrs); err != nil {
			return err
		}
	}

	// 3. Save Edges, keeping file order
	edgeStmt, err := tx.PrepareContext(ctx, "INSERT INTO edges (snapshot_id, position, from_id, to_id, weight) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for i, e := range g.Edges {
		if _, err := edgeStmt.ExecContext(ctx, id, i, e.From, e.To, e.Weight); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, key catalog.Key) (*graph.Graph, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM snapshots WHERE platform = ? AND graph_type = ? AND date = ?",
		key.Platform, key.GraphType, key.Date).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, err
	}

	g := graph.NewGraph()

	// 1. Load Nodes
	rows, err := s.db.QueryContext(ctx, "SELECT id, attributes FROM nodes WHERE snapshot_id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var nodeID string
		var attrs []byte
		if err := rows.Scan(&nodeID, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n := g.AddNode(nodeID)
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &n.Attributes); err != nil {
				return nil, fmt.Errorf("failed to decode attributes of %s: %w", nodeID, err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Load Edges
	edgeRows, err := s.db.QueryContext(ctx, "SELECT from_id, to_id, weight FROM edges WHERE snapshot_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var e graph.Edge
		if err := edgeRows.Scan(&e.From, &e.To, &e.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		g.Edges = append(g.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, err
	}

	g.RebuildIndices()
	return g, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.platform, s.graph_type, s.date, s.stored_at,
			(SELECT COUNT(*) FROM nodes n WHERE n.snapshot_id = s.id),
			(SELECT COUNT(*) FROM edges e WHERE e.snapshot_id = s.id)
		FROM snapshots s
		ORDER BY s.platform, s.graph_type, s.date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var storedAt string
		if err := rows.Scan(&info.Platform, &info.GraphType, &info.Date, &storedAt, &info.Nodes, &info.Edges); err != nil {
			return nil, err
		}
		info.StoredAt, _ = time.Parse(time.RFC3339, storedAt)
		out = append(out, info)
	}
	return out, rows.Err()
}
