package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hurttlocker/distill/internal/store"
)

type documentStat struct {
	Source            string
	EntityCount       int64
	RelationshipCount int64
	DistilledAt       time.Time
}

type sourceReport struct {
	Source        string
	Documents     int
	EntityP50     int64
	EntityP95     int64
	AvgYield      float64
	TotalTriples  int64
	LastDistilled time.Time
}

type report struct {
	TotalDocuments int
	SourceReports  []sourceReport
	CategoryMix    map[string]int
}

type guardrailConfig struct {
	MinEntityYield float64
	MaxStaleDays   int
	WarnOnly       bool
}

func main() {
	dbPath := flag.String("db", defaultDBPath(), "path to the distill database")
	minEntityYield := flag.Float64("min-entity-yield", 1.0, "warn when a source's average entities per document drops below this")
	maxStaleDays := flag.Int("max-stale-days", 30, "warn when a source's newest document is older than this many days (0 disables)")
	warnOnly := flag.Bool("warn-only", true, "when true, emit warnings but always exit 0; set false for CI/cron non-zero exit on warnings")
	flag.Parse()

	if *minEntityYield < 0 {
		fmt.Fprintln(os.Stderr, "Error: --min-entity-yield must be >= 0")
		os.Exit(1)
	}
	if *maxStaleDays < 0 {
		fmt.Fprintln(os.Stderr, "Error: --max-stale-days must be >= 0")
		os.Exit(1)
	}

	stats, mix, err := loadIntake(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := guardrailConfig{
		MinEntityYield: *minEntityYield,
		MaxStaleDays:   *maxStaleDays,
		WarnOnly:       *warnOnly,
	}

	r := buildReport(stats, mix)
	warnings := evaluateGuardrails(r, cfg, time.Now().UTC())
	fmt.Println(renderReport(*dbPath, r, warnings, cfg))
	if len(warnings) > 0 && !cfg.WarnOnly {
		os.Exit(2)
	}
}

func defaultDBPath() string {
	if env := os.Getenv("DISTILL_DB"); env != "" {
		return env
	}
	return store.DefaultDBPath
}

func loadIntake(dbPath string) ([]documentStat, map[string]int, error) {
	st, err := store.NewStore(store.StoreConfig{DBPath: dbPath})
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	sqlite, ok := st.(*store.SQLiteStore)
	if !ok {
		return nil, nil, fmt.Errorf("intake report requires sqlite store")
	}
	db := sqlite.GetDB()

	rows, err := db.Query(
		`SELECT source, entity_count, relationship_count, distilled_at FROM documents`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var stats []documentStat
	for rows.Next() {
		var ds documentStat
		if err := rows.Scan(&ds.Source, &ds.EntityCount, &ds.RelationshipCount, &ds.DistilledAt); err != nil {
			return nil, nil, fmt.Errorf("scanning document row: %w", err)
		}
		ds.Source = normalizeSource(ds.Source)
		stats = append(stats, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading documents: %w", err)
	}

	mix := map[string]int{}
	mixRows, err := db.Query(`SELECT category, COUNT(*) FROM entities GROUP BY category`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying category mix: %w", err)
	}
	defer mixRows.Close()
	for mixRows.Next() {
		var category string
		var count int
		if err := mixRows.Scan(&category, &count); err != nil {
			return nil, nil, fmt.Errorf("scanning category row: %w", err)
		}
		mix[category] = count
	}
	if err := mixRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading category mix: %w", err)
	}

	return stats, mix, nil
}

func normalizeSource(source string) string {
	if strings.TrimSpace(source) == "" {
		return "unknown"
	}
	return source
}

func buildReport(stats []documentStat, mix map[string]int) report {
	bySource := map[string][]documentStat{}
	for _, ds := range stats {
		bySource[ds.Source] = append(bySource[ds.Source], ds)
	}

	sourceReports := make([]sourceReport, 0, len(bySource))
	for source, docs := range bySource {
		entityCounts := make([]int64, 0, len(docs))
		var totalEntities, totalTriples int64
		var newest time.Time
		for _, ds := range docs {
			entityCounts = append(entityCounts, ds.EntityCount)
			totalEntities += ds.EntityCount
			totalTriples += ds.RelationshipCount
			if ds.DistilledAt.After(newest) {
				newest = ds.DistilledAt
			}
		}
		sort.Slice(entityCounts, func(i, j int) bool { return entityCounts[i] < entityCounts[j] })

		sourceReports = append(sourceReports, sourceReport{
			Source:        source,
			Documents:     len(docs),
			EntityP50:     percentileInt64(entityCounts, 0.50),
			EntityP95:     percentileInt64(entityCounts, 0.95),
			AvgYield:      float64(totalEntities) / float64(len(docs)),
			TotalTriples:  totalTriples,
			LastDistilled: newest,
		})
	}

	sort.Slice(sourceReports, func(i, j int) bool {
		if sourceReports[i].Documents == sourceReports[j].Documents {
			return sourceReports[i].Source < sourceReports[j].Source
		}
		return sourceReports[i].Documents > sourceReports[j].Documents
	})

	return report{
		TotalDocuments: len(stats),
		SourceReports:  sourceReports,
		CategoryMix:    mix,
	}
}

func percentileInt64(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func evaluateGuardrails(r report, cfg guardrailConfig, now time.Time) []string {
	warnings := []string{}

	for _, sr := range r.SourceReports {
		if sr.Documents == 0 {
			continue
		}
		if sr.AvgYield < cfg.MinEntityYield {
			warnings = append(warnings, fmt.Sprintf("source %q entity yield %.2f per document below threshold %.2f", sr.Source, sr.AvgYield, cfg.MinEntityYield))
		}
		if cfg.MaxStaleDays > 0 && !sr.LastDistilled.IsZero() {
			ageDays := int(now.Sub(sr.LastDistilled).Hours() / 24)
			if ageDays > cfg.MaxStaleDays {
				warnings = append(warnings, fmt.Sprintf("source %q stale: newest document is %d days old (limit %d)", sr.Source, ageDays, cfg.MaxStaleDays))
			}
		}
	}

	return warnings
}

func renderReport(path string, r report, warnings []string, cfg guardrailConfig) string {
	var b strings.Builder
	b.WriteString("Distill intake report\n")
	b.WriteString(fmt.Sprintf("Database: %s\n", path))
	b.WriteString(fmt.Sprintf("Documents stored: %d\n", r.TotalDocuments))
	if cfg.MaxStaleDays > 0 {
		b.WriteString(fmt.Sprintf("Guardrails: entity yield >= %.2f per document, staleness <= %d days\n", cfg.MinEntityYield, cfg.MaxStaleDays))
	} else {
		b.WriteString(fmt.Sprintf("Guardrails: entity yield >= %.2f per document, staleness check off\n", cfg.MinEntityYield))
	}
	if cfg.WarnOnly {
		b.WriteString("Exit mode: warn-only (always 0)\n")
	} else {
		b.WriteString("Exit mode: strict (non-zero on guardrail warnings)\n")
	}
	b.WriteString("\n")

	b.WriteString("By source\n")
	if len(r.SourceReports) == 0 {
		b.WriteString("(no documents)\n")
	} else {
		b.WriteString("source               docs  p50_ents  p95_ents  yield   triples  last_distilled\n")
		for _, sr := range r.SourceReports {
			b.WriteString(fmt.Sprintf("%-20s %-5d %-9d %-9d %-7.2f %-8d %s\n",
				sr.Source,
				sr.Documents,
				sr.EntityP50,
				sr.EntityP95,
				sr.AvgYield,
				sr.TotalTriples,
				sr.LastDistilled.UTC().Format("2006-01-02 15:04"),
			))
		}
	}

	b.WriteString("\nGuardrail status\n")
	if len(warnings) == 0 {
		b.WriteString("- OK: all configured guardrails passed\n")
	} else {
		for _, w := range warnings {
			b.WriteString("- WARN: " + w + "\n")
		}
	}

	b.WriteString("\nEntity category mix\n")
	for _, line := range formatSortedMix(r.CategoryMix) {
		b.WriteString(line + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatSortedMix(m map[string]int) []string {
	if len(m) == 0 {
		return []string{"(none)"}
	}
	type kv struct {
		k string
		v int
	}
	items := make([]kv, 0, len(m))
	total := 0
	for k, v := range m {
		items = append(items, kv{k: k, v: v})
		total += v
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].v == items[j].v {
			return items[i].k < items[j].k
		}
		return items[i].v > items[j].v
	})
	out := make([]string, 0, len(items))
	for _, it := range items {
		pct := 0.0
		if total > 0 {
			pct = (float64(it.v) / float64(total)) * 100
		}
		out = append(out, fmt.Sprintf("- %s: %d (%.1f%%)", it.k, it.v, pct))
	}
	return out
}
