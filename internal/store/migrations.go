package store

import (
	"database/sql"
	"fmt"
)

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		// One row per distilled text, with provenance and dedup hashes.
		`CREATE TABLE IF NOT EXISTS documents (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			content            TEXT NOT NULL,
			source             TEXT NOT NULL DEFAULT '',
			content_hash       TEXT UNIQUE NOT NULL,
			simhash            INTEGER NOT NULL DEFAULT 0,
			summary            TEXT NOT NULL DEFAULT '',
			entity_count       INTEGER NOT NULL DEFAULT 0,
			relationship_count INTEGER NOT NULL DEFAULT 0,
			distilled_at       DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source)`,

		// Extracted entity mentions
		`CREATE TABLE IF NOT EXISTS entities (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			category    TEXT NOT NULL,
			value       TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_entities_document_id ON entities(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_value ON entities(value)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_category ON entities(category)`,

		// Inferred relationship triples
		`CREATE TABLE IF NOT EXISTS triples (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			subject     TEXT NOT NULL,
			predicate   TEXT NOT NULL,
			object      TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_triples_document_id ON triples(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_triples_subject ON triples(subject)`,

		// Metadata table
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration %q: %w", truncate(stmt, 80), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	return nil
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
