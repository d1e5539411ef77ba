package results

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists run records in a SQLite database. The full record is
// kept as a JSON document; indexed columns carry the fields used for
// listing and lookup.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) a run store at the given path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		model      TEXT NOT NULL,
		method     TEXT NOT NULL,
		status     TEXT NOT NULL,
		timestamp  TEXT NOT NULL,
		states     INTEGER NOT NULL,
		data       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_model ON runs(model);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrating run store: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun inserts or replaces a run record.
func (s *Store) SaveRun(run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO runs (id, model, method, status, timestamp, states, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model.Name, run.Metadata.Method, run.Metadata.Status,
		run.Metadata.Timestamp.Format(time.RFC3339Nano), run.Metadata.States, string(data))
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

// LoadRun fetches a run record by ID.
func (s *Store) LoadRun(id string) (*Run, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM runs WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return FromJSON([]byte(data))
}

// RunInfo summarizes a stored run for listings.
type RunInfo struct {
	ID        string
	Model     string
	Method    string
	Status    string
	Timestamp time.Time
	States    int
}

// ListRuns returns summaries of stored runs, newest first. An empty
// model name matches all runs.
func (s *Store) ListRuns(modelName string) ([]RunInfo, error) {
	query := `SELECT id, model, method, status, timestamp, states FROM runs`
	args := []any{}
	if modelName != "" {
		query += ` WHERE model = ?`
		args = append(args, modelName)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var ts string
		if err := rows.Scan(&info.ID, &info.Model, &info.Method, &info.Status, &ts, &info.States); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		if info.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parsing run timestamp: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteRun removes a stored run.
func (s *Store) DeleteRun(id string) error {
	if _, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	return nil
}
