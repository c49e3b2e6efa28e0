// Package store persists completed scan outcomes in SQLite: which targets
// were scanned, what entities resolved, and how the sources voted. Page
// annotations themselves are never persisted; they die with the page.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ioclens/internal/scan"
)

// ScanRow is one completed scan.
type ScanRow struct {
	ID          string
	Target      string
	Mode        string
	Outcome     string
	Records     int
	Annotations int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// EntityRow is one merged entity from a scan.
type EntityRow struct {
	ScanID        string
	Value         string
	Type          string
	SourceState   string
	Found         bool
	Highlightable bool
	DiscoveryKind string
	SourcesJSON   string
}

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes the database at path, creating directories and tables as
// needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		mode TEXT NOT NULL,
		outcome TEXT NOT NULL,
		records INTEGER NOT NULL,
		annotations INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scans_target ON scans(target);

	CREATE TABLE IF NOT EXISTS scan_entities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL REFERENCES scans(id),
		value TEXT NOT NULL,
		type TEXT NOT NULL,
		source_state TEXT NOT NULL,
		found INTEGER NOT NULL,
		highlightable INTEGER NOT NULL,
		discovery_kind TEXT NOT NULL,
		sources_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_entities_scan ON scan_entities(scan_id);
	CREATE INDEX IF NOT EXISTS idx_entities_value ON scan_entities(value);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// SaveScan records one scan and its entities in a single transaction.
func (s *Store) SaveScan(row ScanRow, records []*scan.EntityRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO scans (id, target, mode, outcome, records, annotations, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Target, row.Mode, row.Outcome, row.Records, row.Annotations,
		row.StartedAt, row.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	for _, rec := range records {
		sourcesJSON, merr := json.Marshal(rec.SourceMatches)
		if merr != nil {
			sourcesJSON = []byte("[]")
		}
		_, err = tx.Exec(
			`INSERT INTO scan_entities (scan_id, value, type, source_state, found, highlightable, discovery_kind, sources_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			row.ID, rec.Value, rec.Type, string(rec.SourceState),
			boolInt(rec.Found), boolInt(rec.Highlightable), string(rec.DiscoveryKind),
			string(sourcesJSON),
		)
		if err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
	}
	return tx.Commit()
}

// ListScans returns the most recent scans, newest first.
func (s *Store) ListScans(limit int) ([]ScanRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, target, mode, outcome, records, annotations, started_at, finished_at
		 FROM scans ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScanRow
	for rows.Next() {
		var r ScanRow
		if err := rows.Scan(&r.ID, &r.Target, &r.Mode, &r.Outcome, &r.Records,
			&r.Annotations, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScanEntities returns the entities recorded for one scan.
func (s *Store) ScanEntities(scanID string) ([]EntityRow, error) {
	rows, err := s.db.Query(
		`SELECT scan_id, value, type, source_state, found, highlightable, discovery_kind, sources_json
		 FROM scan_entities WHERE scan_id = ? ORDER BY id`, scanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EntityRow
	for rows.Next() {
		var r EntityRow
		var found, hl int
		if err := rows.Scan(&r.ScanID, &r.Value, &r.Type, &r.SourceState,
			&found, &hl, &r.DiscoveryKind, &r.SourcesJSON); err != nil {
			return nil, err
		}
		r.Found = found != 0
		r.Highlightable = hl != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
