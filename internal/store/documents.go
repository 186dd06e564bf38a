package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/fingerprint"
)

// SaveResult stores a distillation result as one document plus its
// entity and triple rows, all in a single transaction. The content hash
// and SimHash are computed here; a document whose content hash is
// already stored returns ErrDuplicate.
func (s *SQLiteStore) SaveResult(ctx context.Context, content, source string, res *distill.Result) (*Document, error) {
	if content == "" {
		return nil, fmt.Errorf("document content cannot be empty")
	}
	if res == nil {
		return nil, fmt.Errorf("result cannot be nil")
	}

	doc := &Document{
		Content:           content,
		Source:            source,
		ContentHash:       HashDocument(content, source),
		SimHash:           fingerprint.Hash(content),
		Summary:           res.Summary,
		EntityCount:       res.TotalEntities,
		RelationshipCount: res.TotalRelationships,
		DistilledAt:       res.Timestamp,
	}
	if doc.DistilledAt.IsZero() {
		doc.DistilledAt = time.Now().UTC()
	}

	if existing, err := s.FindByHash(ctx, doc.ContentHash); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("content hash %s already stored as document %d: %w",
			doc.ContentHash[:12], existing.ID, ErrDuplicate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO documents (content, source, content_hash, simhash, summary, entity_count, relationship_count, distilled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Content, doc.Source, doc.ContentHash, int64(doc.SimHash), doc.Summary,
		doc.EntityCount, doc.RelationshipCount, doc.DistilledAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("content hash %s already stored: %w", doc.ContentHash[:12], ErrDuplicate)
		}
		return nil, fmt.Errorf("inserting document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting last insert id: %w", err)
	}
	doc.ID = id

	// Entity rows go in with categories in sorted order and values in
	// extraction order, so reads are deterministic.
	categories := make([]string, 0, len(res.Entities))
	for category := range res.Entities {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)

	entityStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO entities (document_id, category, value) VALUES (?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("preparing entity insert: %w", err)
	}
	defer entityStmt.Close()

	for _, category := range categories {
		for _, value := range res.Entities[distill.Category(category)] {
			if _, err := entityStmt.ExecContext(ctx, id, category, value); err != nil {
				return nil, fmt.Errorf("inserting entity %q: %w", value, err)
			}
		}
	}

	tripleStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO triples (document_id, subject, predicate, object) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("preparing triple insert: %w", err)
	}
	defer tripleStmt.Close()

	for _, tr := range res.Relationships {
		if _, err := tripleStmt.ExecContext(ctx, id, tr.Subject, tr.Predicate, tr.Object); err != nil {
			return nil, fmt.Errorf("inserting triple (%s, %s, %s): %w", tr.Subject, tr.Predicate, tr.Object, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing document: %w", err)
	}
	return doc, nil
}

// GetDocument retrieves a document by ID. Returns nil if not found.
func (s *SQLiteStore) GetDocument(ctx context.Context, id int64) (*Document, error) {
	doc, err := s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, content, source, content_hash, simhash, summary, entity_count, relationship_count, distilled_at
		 FROM documents WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting document %d: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns documents with pagination, newest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, opts ListOpts) ([]*Document, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}

	query := `SELECT id, content, source, content_hash, simhash, summary, entity_count, relationship_count, distilled_at
			  FROM documents`
	args := []interface{}{}

	if opts.Source != "" {
		query += " WHERE source = ?"
		args = append(args, opts.Source)
	}

	query += " ORDER BY distilled_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc := &Document{}
		var simhash int64
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source, &doc.ContentHash, &simhash,
			&doc.Summary, &doc.EntityCount, &doc.RelationshipCount, &doc.DistilledAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		doc.SimHash = uint64(simhash)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document; entity and triple rows cascade.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("document %d not found", id)
	}
	return nil
}

// FindByHash looks up a document by its content hash for deduplication.
// Returns nil if no document matches.
func (s *SQLiteStore) FindByHash(ctx context.Context, hash string) (*Document, error) {
	doc, err := s.scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, content, source, content_hash, simhash, summary, entity_count, relationship_count, distilled_at
		 FROM documents WHERE content_hash = ?`, hash))
	if err != nil {
		return nil, fmt.Errorf("finding document by hash: %w", err)
	}
	return doc, nil
}

// FindNearDuplicate returns the stored document whose SimHash is closest
// to simhash, provided the Hamming distance is at most maxDistance. Ties
// go to the older document. Returns nil when nothing is close enough.
func (s *SQLiteStore) FindNearDuplicate(ctx context.Context, simhash uint64, maxDistance int) (*Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, simhash FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("scanning simhashes: %w", err)
	}
	defer rows.Close()

	bestID := int64(-1)
	bestDistance := maxDistance + 1
	for rows.Next() {
		var id, stored int64
		if err := rows.Scan(&id, &stored); err != nil {
			return nil, fmt.Errorf("scanning simhash row: %w", err)
		}
		if d := fingerprint.Distance(simhash, uint64(stored)); d < bestDistance {
			bestDistance = d
			bestID = id
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if bestID < 0 {
		return nil, nil
	}
	return s.GetDocument(ctx, bestID)
}

// scanDocument reads one document row, mapping sql.ErrNoRows to nil.
func (s *SQLiteStore) scanDocument(row *sql.Row) (*Document, error) {
	doc := &Document{}
	var simhash int64

	err := row.Scan(&doc.ID, &doc.Content, &doc.Source, &doc.ContentHash, &simhash,
		&doc.Summary, &doc.EntityCount, &doc.RelationshipCount, &doc.DistilledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	doc.SimHash = uint64(simhash)
	return doc, nil
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
