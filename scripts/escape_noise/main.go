package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hurttlocker/distill/internal/cleanse"
	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/fingerprint"
	"github.com/hurttlocker/distill/internal/store"
	_ "modernc.org/sqlite"
)

type groupedEntityRow struct {
	DocumentID  int64
	Content     []byte
	Source      string
	DistilledAt string
	Count       int64
}

type documentRow struct {
	ID            int64
	Content       string
	Source        string
	DistilledAt   string
	NoisyEntities int64
}

type metrics struct {
	EntitiesTotal     int64            `json:"entities_total"`
	EntitiesByCat     map[string]int64 `json:"entities_by_category"`
	NoisyEntities     int64            `json:"noisy_entities"`
	NoisyPct          float64          `json:"noisy_pct"`
	DistinctDocuments int64            `json:"distinct_documents"`
}

type report struct {
	DBPath        string        `json:"db_path"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Mode          string        `json:"mode"`
	Limit         int           `json:"limit"`
	Offset        int           `json:"offset"`
	Since         string        `json:"since,omitempty"`
	Selected      int           `json:"selected_documents"`
	SelectedNoisy int64         `json:"selected_noisy_entities"`
	BackupPath    string        `json:"backup_path,omitempty"`
	GlobalBefore  metrics       `json:"global_before"`
	GlobalAfter   metrics       `json:"global_after"`
	SubsetBefore  metrics       `json:"subset_before"`
	SubsetAfter   metrics       `json:"subset_after"`
	Processed     int           `json:"processed"`
	Failed        int           `json:"failed"`
	Cleansed      int           `json:"cleansed"`
	TopSources    []sourceCount `json:"top_sources,omitempty"`
	Errors        []string      `json:"errors,omitempty"`
}

type sourceCount struct {
	Source        string `json:"source"`
	NoisyEntities int64  `json:"noisy_entities"`
}

var transcriptRoleLineRE = regexp.MustCompile(`(?im)^\s*(assistant|user|system)\s*:`)

// isEscapeMangled reports content that carries literal backslash escape
// sequences instead of the control characters they stand for, the usual
// fallout of double-encoded transcript exports.
func isEscapeMangled(content string) bool {
	return strings.Contains(content, `\n`) ||
		strings.Contains(content, `\t`) ||
		strings.Contains(content, `\r`) ||
		strings.Contains(content, `\"`)
}

func isTranscriptLike(content string) bool {
	return len(transcriptRoleLineRE.FindAllStringIndex(content, -1)) >= 2
}

// noisyValue flags extracted values polluted by escape artifacts; a
// backslash inside an entity means the rules matched across a literal
// \n or \t that should have been whitespace.
func noisyValue(v string) bool {
	return strings.Contains(v, `\`)
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

func collectCandidates(ctx context.Context, db *sql.DB, since string, limit, offset int) ([]documentRow, []sourceCount, error) {
	args := []any{}
	query := `
SELECT d.id, CAST(d.content AS BLOB), d.source, d.distilled_at, COUNT(*)
FROM documents d
JOIN entities e ON e.document_id = d.id
WHERE e.value LIKE '%\%'
`
	if since != "" {
		query += "  AND d.distilled_at >= ?\n"
		args = append(args, since)
	}
	query += "GROUP BY d.id ORDER BY d.distilled_at DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	all := []documentRow{}
	sourceNoise := map[string]int64{}

	for rows.Next() {
		var r groupedEntityRow
		if err := rows.Scan(&r.DocumentID, &r.Content, &r.Source, &r.DistilledAt, &r.Count); err != nil {
			return nil, nil, err
		}

		content := string(r.Content)
		if !isEscapeMangled(content) && !isTranscriptLike(content) {
			continue
		}

		all = append(all, documentRow{
			ID:            r.DocumentID,
			Content:       content,
			Source:        r.Source,
			DistilledAt:   r.DistilledAt,
			NoisyEntities: r.Count,
		})
		sourceNoise[r.Source] += r.Count
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if offset >= len(all) {
		return []documentRow{}, []sourceCount{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	selected := all[offset:end]

	top := make([]sourceCount, 0, len(sourceNoise))
	for src, c := range sourceNoise {
		top = append(top, sourceCount{Source: src, NoisyEntities: c})
	}
	sort.Slice(top, func(i, j int) bool { return top[i].NoisyEntities > top[j].NoisyEntities })
	if len(top) > 20 {
		top = top[:20]
	}

	return selected, top, nil
}

func calcMetrics(ctx context.Context, db *sql.DB, ids []int64) (metrics, error) {
	m := metrics{EntitiesByCat: map[string]int64{}}

	args := []any{}
	where := ""
	if len(ids) > 0 {
		for _, id := range ids {
			args = append(args, id)
		}
		where = fmt.Sprintf("WHERE document_id IN (%s)", placeholders(len(ids)))
	}

	qTotal := fmt.Sprintf(`SELECT COUNT(*), COUNT(DISTINCT document_id) FROM entities %s`, where)
	if err := db.QueryRowContext(ctx, qTotal, args...).Scan(&m.EntitiesTotal, &m.DistinctDocuments); err != nil {
		return m, err
	}

	qCat := fmt.Sprintf(`SELECT category, COUNT(*) FROM entities %s GROUP BY category`, where)
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
		m.EntitiesByCat[c] = n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return m, err
	}
	rows.Close()

	qNoisy := fmt.Sprintf(`SELECT value, COUNT(*) FROM entities %s GROUP BY value`, where)
	rows, err = db.QueryContext(ctx, qNoisy, args...)
	if err != nil {
		return m, err
	}
	for rows.Next() {
		var v string
		var c int64
		if err := rows.Scan(&v, &c); err != nil {
			rows.Close()
			return m, err
		}
		if noisyValue(v) {
			m.NoisyEntities += c
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return m, err
	}
	rows.Close()

	if m.EntitiesTotal > 0 {
		m.NoisyPct = (float64(m.NoisyEntities) / float64(m.EntitiesTotal)) * 100.0
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
	since := flag.String("since", "", "ISO timestamp lower-bound for distilled_at (optional)")
	limit := flag.Int("limit", 250, "Max escape-mangled documents to cleanse and re-distill")
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

	candidates, topSources, err := collectCandidates(ctx, db, *since, *limit, *offset)
	if err != nil {
		panic(err)
	}

	ids := make([]int64, 0, len(candidates))
	selectedNoisy := int64(0)
	for _, c := range candidates {
		ids = append(ids, c.ID)
		selectedNoisy += c.NoisyEntities
	}

	rep := report{
		DBPath:        *dbPath,
		GeneratedAt:   time.Now().UTC(),
		Mode:          map[bool]string{true: "dry-run", false: "write"}[*dryRun],
		Limit:         *limit,
		Offset:        *offset,
		Since:         *since,
		Selected:      len(candidates),
		SelectedNoisy: selectedNoisy,
		TopSources:    topSources,
	}

	rep.GlobalBefore, err = calcMetrics(ctx, db, nil)
	if err != nil {
		panic(err)
	}
	rep.SubsetBefore, err = calcMetrics(ctx, db, ids)
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

		for _, doc := range candidates {
			content := cleanse.Unescape(doc.Content)
			if content != doc.Content {
				rep.Cleansed++
			}
			res := d.Distill(content)

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("document %d tx begin error: %v", doc.ID, err))
				continue
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE document_id = ?`, doc.ID); err != nil {
				_ = tx.Rollback()
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("document %d entity delete error: %v", doc.ID, err))
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM triples WHERE document_id = ?`, doc.ID); err != nil {
				_ = tx.Rollback()
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("document %d triple delete error: %v", doc.ID, err))
				continue
			}

			for _, category := range d.Categories() {
				for _, value := range res.Entities[category] {
					if _, err := tx.ExecContext(ctx,
						`INSERT INTO entities (document_id, category, value) VALUES (?, ?, ?)`,
						doc.ID, string(category), value); err != nil {
						_ = tx.Rollback()
						rep.Failed++
						rep.Errors = append(rep.Errors, fmt.Sprintf("document %d entity insert error: %v", doc.ID, err))
						goto nextDocument
					}
				}
			}

			for _, triple := range res.Relationships {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO triples (document_id, subject, predicate, object) VALUES (?, ?, ?, ?)`,
					doc.ID, triple.Subject, triple.Predicate, triple.Object); err != nil {
					_ = tx.Rollback()
					rep.Failed++
					rep.Errors = append(rep.Errors, fmt.Sprintf("document %d triple insert error: %v", doc.ID, err))
					goto nextDocument
				}
			}

			if _, err := tx.ExecContext(ctx, `
UPDATE documents
SET content = ?, content_hash = ?, simhash = ?, summary = ?, entity_count = ?, relationship_count = ?
WHERE id = ?
`, content, store.HashDocument(content, doc.Source), int64(fingerprint.Hash(content)),
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

	rep.GlobalAfter, err = calcMetrics(ctx, db, nil)
	if err != nil {
		panic(err)
	}
	rep.SubsetAfter, err = calcMetrics(ctx, db, ids)
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
