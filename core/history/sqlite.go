package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists revisions to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS schedule_revisions (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT,
        ts INTEGER,
        trigger_name TEXT,
        case_id TEXT,
        accepted INTEGER,
        record TEXT
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the revision to the database.
func (s *SQLiteStore) Append(ctx context.Context, rev Revision) error {
	b, err := json.Marshal(rev)
	if err != nil {
		return err
	}
	accepted := 0
	if rev.Accepted {
		accepted = 1
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schedule_revisions (id, ts, trigger_name, case_id, accepted, record) VALUES (?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.Timestamp.UnixNano(), rev.Trigger, rev.CaseID, accepted, string(b))
	return err
}

// Query returns revisions matching q in insertion order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Revision, error) {
	var args []any
	query := `SELECT record FROM schedule_revisions WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.Trigger != "" {
		query += ` AND trigger_name = ?`
		args = append(args, q.Trigger)
	}
	if q.Accepted {
		query += ` AND accepted = 1`
	}
	query += ` ORDER BY ts, seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Revision
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Revision
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal revision: %w", err)
		}
		// case membership lives inside the rows, so it is filtered here
		if q.Match(r) {
			res = append(res, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return q.limit(res), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
