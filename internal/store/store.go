// Package store provides the SQLite storage layer for distilled documents.
//
// Everything lives in a single SQLite database file:
// - Raw document content with provenance and dedup hashes
// - Extracted entities, one row per (document, category, value)
// - Inferred relationship triples
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/distill/internal/distill"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.distill/distill.db"

// DefaultListLimit caps ListDocuments when the caller passes none.
const DefaultListLimit = 100

// ErrDuplicate is returned by SaveResult when a document with the same
// content hash is already stored.
var ErrDuplicate = errors.New("document already stored")

// Document is one distilled text with its stored pipeline output counts.
type Document struct {
	ID                int64
	Content           string
	Source            string
	ContentHash       string
	SimHash           uint64
	Summary           string
	EntityCount       int
	RelationshipCount int
	DistilledAt       time.Time
}

// Entity is one stored entity mention belonging to a document.
type Entity struct {
	ID         int64
	DocumentID int64
	Category   string
	Value      string
}

// Triple is one stored relationship belonging to a document.
type Triple struct {
	ID         int64
	DocumentID int64
	Subject    string
	Predicate  string
	Object     string
}

// EntityFrequency reports how many documents mention a value under a
// category.
type EntityFrequency struct {
	Value     string
	Category  string
	Documents int64
}

// ListOpts controls pagination and filtering for ListDocuments.
type ListOpts struct {
	Limit  int
	Offset int
	Source string // filter by source when non-empty
}

// StoreStats holds observability statistics about the store.
type StoreStats struct {
	DocumentCount int64
	EntityCount   int64
	TripleCount   int64
	DBSizeBytes   int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the persistence interface for distillation output.
type Store interface {
	// Documents
	SaveResult(ctx context.Context, content, source string, res *distill.Result) (*Document, error)
	GetDocument(ctx context.Context, id int64) (*Document, error)
	ListDocuments(ctx context.Context, opts ListOpts) ([]*Document, error)
	DeleteDocument(ctx context.Context, id int64) error

	// Deduplication
	FindByHash(ctx context.Context, hash string) (*Document, error)
	FindNearDuplicate(ctx context.Context, simhash uint64, maxDistance int) (*Document, error)

	// Pipeline output
	EntitiesForDocument(ctx context.Context, id int64) ([]*Entity, error)
	TriplesForDocument(ctx context.Context, id int64) ([]*Triple, error)
	TopEntities(ctx context.Context, limit int) ([]*EntityFrequency, error)

	// Observability
	Stats(ctx context.Context) (*StoreStats, error)

	// Maintenance
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	cfg.DBPath = expandPath(cfg.DBPath)

	// Create parent directory for non-memory databases
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Enable WAL mode and foreign keys
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		dbPath: cfg.DBPath,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetDB exposes the underlying database handle for callers that need raw
// SQL, such as the maintenance sweep and reporting scripts.
func (s *SQLiteStore) GetDB() *sql.DB {
	return s.db
}

// Vacuum runs VACUUM on the database. Manual invocation only.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
