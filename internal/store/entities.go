package store

import (
	"context"
	"fmt"
)

// EntitiesForDocument returns a document's entity rows in insertion
// order: categories sorted, values in extraction order within each.
func (s *SQLiteStore) EntitiesForDocument(ctx context.Context, id int64) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_id, category, value FROM entities WHERE document_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("listing entities for document %d: %w", id, err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		e := &Entity{}
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Category, &e.Value); err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// TriplesForDocument returns a document's relationship rows in stored
// order, which is the sorted order the pipeline emitted.
func (s *SQLiteStore) TriplesForDocument(ctx context.Context, id int64) ([]*Triple, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, document_id, subject, predicate, object FROM triples WHERE document_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("listing triples for document %d: %w", id, err)
	}
	defer rows.Close()

	var triples []*Triple
	for rows.Next() {
		tr := &Triple{}
		if err := rows.Scan(&tr.ID, &tr.DocumentID, &tr.Subject, &tr.Predicate, &tr.Object); err != nil {
			return nil, fmt.Errorf("scanning triple row: %w", err)
		}
		triples = append(triples, tr)
	}
	return triples, rows.Err()
}

// TopEntities returns the most widely mentioned (value, category) pairs
// ranked by how many documents mention them.
func (s *SQLiteStore) TopEntities(ctx context.Context, limit int) ([]*EntityFrequency, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT value, category, COUNT(DISTINCT document_id) AS documents
		 FROM entities
		 GROUP BY value, category
		 ORDER BY documents DESC, value ASC, category ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top entities: %w", err)
	}
	defer rows.Close()

	var out []*EntityFrequency
	for rows.Next() {
		f := &EntityFrequency{}
		if err := rows.Scan(&f.Value, &f.Category, &f.Documents); err != nil {
			return nil, fmt.Errorf("scanning top entity row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
