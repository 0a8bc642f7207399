package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mightyhouseinc/polyfile/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite (pure-Go driver, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store at the given path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// AddReport stores a scan report.
func (s *SQLiteStore) AddReport(path string, roots []*types.Record) (int64, error) {
	rootsJSON, err := json.Marshal(roots)
	if err != nil {
		return 0, fmt.Errorf("marshaling roots: %w", err)
	}
	res, err := s.db.Exec(
		"INSERT INTO reports (path, created_at, roots_json) VALUES (?, ?, ?)",
		path,
		time.Now().UTC().Format(time.RFC3339Nano),
		string(rootsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting report: %w", err)
	}
	return res.LastInsertId()
}

// GetReport retrieves one report by ID.
func (s *SQLiteStore) GetReport(id int64) (*Report, error) {
	row := s.db.QueryRow("SELECT id, path, created_at, roots_json FROM reports WHERE id = ?", id)
	return scanReport(row)
}

// ListReports retrieves all reports, oldest first.
func (s *SQLiteStore) ListReports() ([]*Report, error) {
	rows, err := s.db.Query("SELECT id, path, created_at, roots_json FROM reports ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []*Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*Report, error) {
	var (
		r         Report
		createdAt string
		rootsJSON string
	)
	if err := row.Scan(&r.ID, &r.Path, &createdAt, &rootsJSON); err != nil {
		return nil, fmt.Errorf("scanning report: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	r.CreatedAt = ts
	if err := json.Unmarshal([]byte(rootsJSON), &r.Roots); err != nil {
		return nil, fmt.Errorf("unmarshaling roots: %w", err)
	}
	return &r, nil
}
