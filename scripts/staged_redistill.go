package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hurttlocker/distill/internal/distill"
	_ "modernc.org/sqlite"
)

type documentRow struct {
	ID          int64
	Content     string
	Source      string
	DistilledAt string
}

type metrics struct {
	EntitiesTotal      int64            `json:"entities_total"`
	EntitiesByCategory map[string]int64 `json:"entities_by_category"`
	TriplesTotal       int64            `json:"triples_total"`
}

type report struct {
	DBPath           string    `json:"db_path"`
	GeneratedAt      time.Time `json:"generated_at"`
	Mode             string    `json:"mode"`
	Limit            int       `json:"limit"`
	Offset           int       `json:"offset"`
	Since            string    `json:"since,omitempty"`
	SourceLike       string    `json:"source_like,omitempty"`
	Selected         int       `json:"selected_documents"`
	BackupPath       string    `json:"backup_path,omitempty"`
	Before           metrics   `json:"before"`
	After            metrics   `json:"after"`
	Processed        int       `json:"processed"`
	Failed           int       `json:"failed"`
	DeletedEntities  int64     `json:"deleted_entities"`
	DeletedTriples   int64     `json:"deleted_triples"`
	InsertedEntities int64     `json:"inserted_entities"`
	InsertedTriples  int64     `json:"inserted_triples"`
	Errors           []string  `json:"errors,omitempty"`
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}

func collectDocuments(ctx context.Context, db *sql.DB, sourceLike, since string, limit, offset int) ([]documentRow, error) {
	args := []any{sourceLike}
	query := `
SELECT id, content, source, distilled_at
FROM documents
WHERE source LIKE ?
`
	if since != "" {
		query += "  AND distilled_at >= ?\n"
		args = append(args, since)
	}
	query += "ORDER BY distilled_at DESC\nLIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []documentRow{}
	for rows.Next() {
		var r documentRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Source, &r.DistilledAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func calcMetrics(ctx context.Context, db *sql.DB, ids []int64) (metrics, error) {
	m := metrics{EntitiesByCategory: map[string]int64{}}
	if len(ids) == 0 {
		return m, nil
	}

	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	ph := placeholders(len(ids))

	qTotal := fmt.Sprintf(`SELECT COUNT(*) FROM entities WHERE document_id IN (%s)`, ph)
	if err := db.QueryRowContext(ctx, qTotal, args...).Scan(&m.EntitiesTotal); err != nil {
		return m, err
	}

	qCat := fmt.Sprintf(`SELECT category, COUNT(*) FROM entities WHERE document_id IN (%s) GROUP BY category`, ph)
	rows, err := db.QueryContext(ctx, qCat, args...)
	if err != nil {
		return m, err
	}
	for rows.Next() {
		var c string
		var n int64
		if err := rows.Scan(&c, &n); err != nil {
			rows.Close()
			return m, err
		}
		m.EntitiesByCategory[c] = n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return m, err
	}
	rows.Close()

	qTriples := fmt.Sprintf(`SELECT COUNT(*) FROM triples WHERE document_id IN (%s)`, ph)
	if err := db.QueryRowContext(ctx, qTriples, args...).Scan(&m.TriplesTotal); err != nil {
		return m, err
	}

	return m, nil
}

func backupDB(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Sync()
}

func main() {
	dbPath := flag.String("db", filepath.Join(os.Getenv("HOME"), ".distill", "distill.db"), "Path to distill sqlite db")
	sourceLike := flag.String("source-like", "%", "SQL LIKE pattern selecting document sources")
	since := flag.String("since", "", "ISO timestamp lower-bound for distilled_at (optional)")
	limit := flag.Int("limit", 250, "Max documents to re-distill")
	offset := flag.Int("offset", 0, "Offset into ordered candidate documents")
	dryRun := flag.Bool("dry-run", false, "Only report counts, do not mutate")
	backupPath := flag.String("backup", "", "Backup path before write mode")
	reportPath := flag.String("report", "", "Optional path to write JSON report")
	flag.Parse()

	ctx := context.Background()
	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	rows, err := collectDocuments(ctx, db, *sourceLike, *since, *limit, *offset)
	if err != nil {
		panic(err)
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	rep := report{
		DBPath:      *dbPath,
		GeneratedAt: time.Now().UTC(),
		Mode:        map[bool]string{true: "dry-run", false: "write"}[*dryRun],
		Limit:       *limit,
		Offset:      *offset,
		Since:       *since,
		SourceLike:  *sourceLike,
		Selected:    len(rows),
	}

	rep.Before, err = calcMetrics(ctx, db, ids)
	if err != nil {
		panic(err)
	}

	if !*dryRun {
		if *backupPath != "" {
			if err := backupDB(*dbPath, *backupPath); err != nil {
				panic(fmt.Errorf("backup failed: %w", err))
			}
			rep.BackupPath = *backupPath
		}

		d := distill.New()

		for _, doc := range rows {
			res := d.Distill(doc.Content)

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("document %d tx begin error: %v", doc.ID, err))
				continue
			}

			delEnts, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE document_id = ?`, doc.ID)
			if err != nil {
				_ = tx.Rollback()
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("document %d entity delete error: %v", doc.ID, err))
				continue
			}
			deleted, _ := delEnts.RowsAffected()
			rep.DeletedEntities += deleted

			delTriples, err := tx.ExecContext(ctx, `DELETE FROM triples WHERE document_id = ?`, doc.ID)
			if err != nil {
				_ = tx.Rollback()
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("document %d triple delete error: %v", doc.ID, err))
				continue
			}
			deleted, _ = delTriples.RowsAffected()
			rep.DeletedTriples += deleted

			for _, category := range d.Categories() {
				for _, value := range res.Entities[category] {
					_, err := tx.ExecContext(ctx,
						`INSERT INTO entities (document_id, category, value) VALUES (?, ?, ?)`,
						doc.ID, string(category), value)
					if err != nil {
						_ = tx.Rollback()
						rep.Failed++
						rep.Errors = append(rep.Errors, fmt.Sprintf("document %d entity insert error: %v", doc.ID, err))
						goto nextDocument
					}
					rep.InsertedEntities++
				}
			}

			for _, triple := range res.Relationships {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO triples (document_id, subject, predicate, object) VALUES (?, ?, ?, ?)`,
					doc.ID, triple.Subject, triple.Predicate, triple.Object)
				if err != nil {
					_ = tx.Rollback()
					rep.Failed++
					rep.Errors = append(rep.Errors, fmt.Sprintf("document %d triple insert error: %v", doc.ID, err))
					goto nextDocument
				}
				rep.InsertedTriples++
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE documents SET summary = ?, entity_count = ?, relationship_count = ? WHERE id = ?`,
				res.Summary, res.TotalEntities, res.TotalRelationships, doc.ID); err != nil {
				_ = tx.Rollback()
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("document %d update error: %v", doc.ID, err))
				continue
			}

			if err := tx.Commit(); err != nil {
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("document %d commit error: %v", doc.ID, err))
				continue
			}
			rep.Processed++

		nextDocument:
		}
	}

	rep.After, err = calcMetrics(ctx, db, ids)
	if err != nil {
		panic(err)
	}

	out, _ := json.MarshalIndent(rep, "", "  ")
	fmt.Println(string(out))
	if *reportPath != "" {
		if err := os.WriteFile(*reportPath, out, 0o644); err != nil {
			panic(err)
		}
	}
}
