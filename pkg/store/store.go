// Package store persists scan reports: the serialized root records
// produced for each analyzed path.
package store

import (
	"fmt"
	"time"

	"github.com/mightyhouseinc/polyfile/pkg/types"
)

// Report is one stored scan: the path analyzed and its root records.
type Report struct {
	ID        int64
	Path      string
	CreatedAt time.Time
	Roots     []*types.Record
}

// Store provides persistence for scan reports. The interface abstracts
// the backend so tests can run in memory while the CLI writes SQLite.
type Store interface {
	// AddReport stores a scan report and returns its ID.
	AddReport(path string, roots []*types.Record) (int64, error)

	// GetReport retrieves one report by ID.
	GetReport(id int64) (*Report, error)

	// ListReports retrieves all reports, oldest first.
	ListReports() ([]*Report, error)

	// Close closes the backing database.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path. Use ":memory:" for an in-memory
	// store (useful for testing).
	Path string
}

// New creates a Store for the config.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == ":memory:" {
		return NewMemory(), nil
	}
	return NewSQLite(cfg.Path)
}
