package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/insightgraph/internal/graph"
)

// timeFormat is fixed width so saved_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Snapshot is a stored graph document.
type Snapshot struct {
	Summary  `yaml:",inline"`
	Document graph.Document `json:"document" yaml:"document"`
}

// Save stores doc under key, replacing the current snapshot for that key.
// It returns the id of the new snapshot.
func (s *SQLiteStore) Save(ctx context.Context, key string, doc graph.Document) (string, error) {
	if s.db == nil {
		return "", errNotOpened
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	id := generateID()
	savedAt := s.now().UTC().Format(timeFormat)
	nodes, edges := len(doc.Nodes), len(doc.Edges)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (key, id, payload, node_count, edge_count, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key, id, string(payload), nodes, edges, savedAt); err != nil {
		return "", fmt.Errorf("save snapshot %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshot_history (id, key, payload, node_count, edge_count, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, key, string(payload), nodes, edges, savedAt); err != nil {
		return "", fmt.Errorf("record snapshot history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return id, nil
}

// Load returns the current snapshot under key, or ErrNoSnapshot.
func (s *SQLiteStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, key, node_count, edge_count, saved_at, payload
		FROM snapshots WHERE key = ?
	`, key)
	return scanSnapshot(row, key)
}

// LoadByID returns a snapshot from the history, or ErrNoSnapshot.
func (s *SQLiteStore) LoadByID(ctx context.Context, id string) (*Snapshot, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, key, node_count, edge_count, saved_at, payload
		FROM snapshot_history WHERE id = ?
	`, id)
	return scanSnapshot(row, id)
}

// List returns the current snapshot of every key, most recent first.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, node_count, edge_count, saved_at
		FROM snapshots ORDER BY saved_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return scanSummaries(rows)
}

// History returns up to limit earlier saves under key, most recent first.
// A limit of zero or less returns all of them.
func (s *SQLiteStore) History(ctx context.Context, key string, limit int) ([]Summary, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, node_count, edge_count, saved_at
		FROM snapshot_history WHERE key = ?
		ORDER BY saved_at DESC
		LIMIT ?
	`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshot history: %w", err)
	}
	return scanSummaries(rows)
}

// Prune keeps the most recent keep history entries per key and deletes the
// rest. It returns the number of deleted entries.
func (s *SQLiteStore) Prune(ctx context.Context, key string, keep int) (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshot_history
		WHERE key = ? AND id NOT IN (
			SELECT id FROM snapshot_history
			WHERE key = ?
			ORDER BY saved_at DESC
			LIMIT ?
		)
	`, key, key, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshot history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanSnapshot(row *sql.Row, ref string) (*Snapshot, error) {
	var (
		snap    Snapshot
		savedAt string
		payload string
	)
	err := row.Scan(&snap.ID, &snap.Key, &snap.NodeCount, &snap.EdgeCount, &savedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", ref, err)
	}

	if snap.SavedAt, err = time.Parse(timeFormat, savedAt); err != nil {
		return nil, fmt.Errorf("snapshot %s: bad timestamp %q: %w", ref, savedAt, err)
	}
	if err := json.Unmarshal([]byte(payload), &snap.Document); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", ref, err)
	}
	return &snap, nil
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	defer func() { _ = rows.Close() }()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			savedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Key, &sum.NodeCount, &sum.EdgeCount, &savedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		t, err := time.Parse(timeFormat, savedAt)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: bad timestamp %q: %w", sum.ID, savedAt, err)
		}
		sum.SavedAt = t
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
