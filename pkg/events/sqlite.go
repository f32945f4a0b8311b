package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS mission_events (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	severity TEXT NOT NULL,
	agent_id INTEGER NOT NULL,
	elapsed REAL NOT NULL,
	message TEXT NOT NULL,
	details TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mission_events_run ON mission_events(run_id, elapsed);
CREATE INDEX IF NOT EXISTS idx_mission_events_kind ON mission_events(run_id, kind);
`

// SQLiteSink persists events for post-mission analysis
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) an event database and migrates it
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set sqlite pragma %q: %w", stmt, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) Handle(e Event) error {
	return s.Insert(context.Background(), e)
}

// Insert stores one event
func (s *SQLiteSink) Insert(ctx context.Context, e Event) error {
	details := []byte("{}")
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode details: %w", err)
		}
		details = raw
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO mission_events(
			id, run_id, kind, severity, agent_id, elapsed, message, details, created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, string(e.Kind), e.Severity, e.AgentID, e.Elapsed, e.Message,
		string(details), e.Time.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListRun returns the events of one run in mission-clock order. An empty
// kind matches every kind.
func (s *SQLiteSink) ListRun(ctx context.Context, runID string, kind Kind) ([]Event, error) {
	query := `SELECT id, run_id, kind, severity, agent_id, elapsed, message, details, created_at
		FROM mission_events WHERE run_id = ?`
	args := []interface{}{runID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY elapsed, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var kindStr, details string
		var created int64
		if err := rows.Scan(&e.ID, &e.RunID, &kindStr, &e.Severity, &e.AgentID, &e.Elapsed,
			&e.Message, &details, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = Kind(kindStr)
		e.Time = time.UnixMilli(created).UTC()
		if details != "{}" && details != "" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("decode details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// CountByKind tallies a run's events
func (s *SQLiteSink) CountByKind(ctx context.Context, runID string) (map[Kind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM mission_events WHERE run_id = ? GROUP BY kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Kind(kind)] = n
	}
	return counts, rows.Err()
}

// RunSummary describes one stored run
type RunSummary struct {
	RunID     string
	Events    int
	Duration  float64
	StartedAt time.Time
}

// ListRuns returns every stored run, most recent first
func (s *SQLiteSink) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, COUNT(*), MAX(elapsed), MIN(created_at)
		FROM mission_events GROUP BY run_id ORDER BY MIN(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started int64
		if err := rows.Scan(&r.RunID, &r.Events, &r.Duration, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
