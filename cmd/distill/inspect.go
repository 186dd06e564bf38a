package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hurttlocker/distill/internal/config"
	"github.com/hurttlocker/distill/internal/lifecycle"
	"github.com/hurttlocker/distill/internal/store"
)

// documentRow is the JSON shape shared by recent and show.
type documentRow struct {
	ID                int64  `json:"id"`
	Source            string `json:"source"`
	EntityCount       int    `json:"entity_count"`
	RelationshipCount int    `json:"relationship_count"`
	Summary           string `json:"summary"`
	DistilledAt       string `json:"distilled_at"`
}

func toDocumentRow(doc *store.Document) documentRow {
	return documentRow{
		ID:                doc.ID,
		Source:            doc.Source,
		EntityCount:       doc.EntityCount,
		RelationshipCount: doc.RelationshipCount,
		Summary:           doc.Summary,
		DistilledAt:       doc.DistilledAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// parseBareArgs accepts only --json for commands without arguments.
func parseBareArgs(command string, args []string) (jsonOut bool, err error) {
	for _, arg := range args {
		switch {
		case arg == "--json":
			jsonOut = true
		case strings.HasPrefix(arg, "-"):
			return false, fmt.Errorf("unknown flag: %s", arg)
		default:
			return false, fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	return jsonOut, nil
}

func runStats(args []string) error {
	jsonOut, err := parseBareArgs("stats", args)
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.Stats(context.Background())
	if err != nil {
		return err
	}

	if jsonOut || !isTTY() {
		return printJSON(map[string]int64{
			"documents":     st.DocumentCount,
			"entities":      st.EntityCount,
			"triples":       st.TripleCount,
			"db_size_bytes": st.DBSizeBytes,
		})
	}

	fmt.Printf("Documents:     %d\n", st.DocumentCount)
	fmt.Printf("Entities:      %d\n", st.EntityCount)
	fmt.Printf("Relationships: %d\n", st.TripleCount)
	fmt.Printf("DB size:       %s\n", formatBytes(st.DBSizeBytes))
	return nil
}

func runRecent(args []string) error {
	var (
		limit   = 10
		source  string
		jsonOut bool
	)
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--json":
			jsonOut = true
		case args[i] == "--limit" && i+1 < len(args):
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid --limit %q: must be a positive integer", args[i+1])
			}
			limit = n
			i++
		case strings.HasPrefix(args[i], "--limit="):
			raw := strings.TrimPrefix(args[i], "--limit=")
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid --limit %q: must be a positive integer", raw)
			}
			limit = n
		case args[i] == "--source" && i+1 < len(args):
			source = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--source="):
			source = strings.TrimPrefix(args[i], "--source=")
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	docs, err := s.ListDocuments(context.Background(), store.ListOpts{Limit: limit, Source: source})
	if err != nil {
		return err
	}

	if jsonOut || !isTTY() {
		rows := make([]documentRow, 0, len(docs))
		for _, doc := range docs {
			rows = append(rows, toDocumentRow(doc))
		}
		return printJSON(rows)
	}
	outputRecentTTY(docs)
	return nil
}

func outputRecentTTY(docs []*store.Document) {
	if len(docs) == 0 {
		fmt.Println("No documents stored.")
		return
	}
	fmt.Printf("%-6s %-24s %-5s %-5s %-19s %s\n", "ID", "SOURCE", "ENTS", "RELS", "DISTILLED", "SUMMARY")
	for _, doc := range docs {
		fmt.Printf("%-6d %-24s %-5d %-5d %-19s %s\n",
			doc.ID,
			truncate(doc.Source, 24),
			doc.EntityCount,
			doc.RelationshipCount,
			doc.DistilledAt.Local().Format("2006-01-02 15:04:05"),
			truncate(doc.Summary, 48))
	}
}

func runShow(args []string) error {
	var idArg string
	jsonOut := false
	for _, arg := range args {
		switch {
		case arg == "--json":
			jsonOut = true
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		case idArg == "":
			idArg = arg
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if idArg == "" {
		return fmt.Errorf("usage: distill show <id> [--json]")
	}
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id: %s", idArg)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("document %d not found", id)
	}

	entities, err := s.EntitiesForDocument(ctx, id)
	if err != nil {
		return err
	}
	triples, err := s.TriplesForDocument(ctx, id)
	if err != nil {
		return err
	}

	if jsonOut || !isTTY() {
		type entityRow struct {
			Category string `json:"category"`
			Value    string `json:"value"`
		}
		type tripleRow struct {
			Subject   string `json:"subject"`
			Predicate string `json:"predicate"`
			Object    string `json:"object"`
		}
		payload := struct {
			documentRow
			ContentHash string      `json:"content_hash"`
			SimHash     string      `json:"simhash"`
			Content     string      `json:"content"`
			Entities    []entityRow `json:"entities"`
			Triples     []tripleRow `json:"triples"`
		}{
			documentRow: toDocumentRow(doc),
			ContentHash: doc.ContentHash,
			SimHash:     fmt.Sprintf("%016x", doc.SimHash),
			Content:     doc.Content,
			Entities:    make([]entityRow, 0, len(entities)),
			Triples:     make([]tripleRow, 0, len(triples)),
		}
		for _, e := range entities {
			payload.Entities = append(payload.Entities, entityRow{Category: e.Category, Value: e.Value})
		}
		for _, tr := range triples {
			payload.Triples = append(payload.Triples, tripleRow{Subject: tr.Subject, Predicate: tr.Predicate, Object: tr.Object})
		}
		return printJSON(payload)
	}

	fmt.Printf("Document %d\n", doc.ID)
	fmt.Printf("  Source:      %s\n", doc.Source)
	fmt.Printf("  Distilled:   %s\n", doc.DistilledAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  ContentHash: %s\n", doc.ContentHash)
	fmt.Printf("  SimHash:     %016x\n", doc.SimHash)
	fmt.Printf("  Summary:     %s\n", truncate(doc.Summary, 120))

	fmt.Println()
	fmt.Printf("Entities (%d):\n", len(entities))
	for _, e := range entities {
		fmt.Printf("  %-14s %s\n", e.Category, e.Value)
	}

	fmt.Println()
	fmt.Printf("Relationships (%d):\n", len(triples))
	for _, tr := range triples {
		fmt.Printf("  %-24s %-26s %s\n", truncate(tr.Subject, 24), tr.Predicate, truncate(tr.Object, 40))
	}
	return nil
}

func runTop(args []string) error {
	limit := 20
	jsonOut := false
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--json":
			jsonOut = true
		case args[i] == "--limit" && i+1 < len(args):
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid --limit %q: must be a positive integer", args[i+1])
			}
			limit = n
			i++
		case strings.HasPrefix(args[i], "--limit="):
			raw := strings.TrimPrefix(args[i], "--limit=")
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid --limit %q: must be a positive integer", raw)
			}
			limit = n
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	freqs, err := s.TopEntities(context.Background(), limit)
	if err != nil {
		return err
	}

	if jsonOut || !isTTY() {
		type freqRow struct {
			Value     string `json:"value"`
			Category  string `json:"category"`
			Documents int64  `json:"documents"`
		}
		rows := make([]freqRow, 0, len(freqs))
		for _, f := range freqs {
			rows = append(rows, freqRow{Value: f.Value, Category: f.Category, Documents: f.Documents})
		}
		return printJSON(rows)
	}

	if len(freqs) == 0 {
		fmt.Println("No entities stored.")
		return nil
	}
	fmt.Printf("%-32s %-14s %s\n", "VALUE", "CATEGORY", "DOCS")
	for _, f := range freqs {
		fmt.Printf("%-32s %-14s %d\n", truncate(f.Value, 32), f.Category, f.Documents)
	}
	return nil
}

func runDelete(args []string) error {
	if len(args) != 1 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("usage: distill delete <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id: %s", args[0])
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.DeleteDocument(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted document %d\n", id)
	return nil
}

func runVacuum(args []string) error {
	if _, err := parseBareArgs("vacuum", args); err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	before, err := s.Stats(ctx)
	if err != nil {
		return err
	}
	if err := s.Vacuum(ctx); err != nil {
		return err
	}
	after, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	freed := before.DBSizeBytes - after.DBSizeBytes
	if freed < 0 {
		freed = 0
	}
	fmt.Printf("Vacuum complete: %s -> %s (%s reclaimed)\n",
		formatBytes(before.DBSizeBytes), formatBytes(after.DBSizeBytes), formatBytes(freed))
	return nil
}

func runMaintain(args []string) error {
	var apply, jsonOut bool
	for _, arg := range args {
		switch arg {
		case "--apply":
			apply = true
		case "--json":
			jsonOut = true
		default:
			if strings.HasPrefix(arg, "-") {
				return fmt.Errorf("unknown flag: %s", arg)
			}
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	cfg, err := config.LoadMaintenanceConfig(globalConfigPath)
	if err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	runner, err := lifecycle.NewRunner(s, cfg)
	if err != nil {
		return err
	}
	report, err := runner.Run(context.Background(), !apply)
	if err != nil {
		return err
	}

	if jsonOut || !isTTY() {
		return printJSON(report)
	}
	outputMaintainTTY(report)
	return nil
}

func outputMaintainTTY(report *lifecycle.Report) {
	mode := "dry-run"
	if !report.DryRun {
		mode = "apply"
	}
	fmt.Printf("Maintenance sweep (%s): scanned %d, planned %d, applied %d\n",
		mode, report.Scanned, len(report.Actions), report.Applied)
	for _, a := range report.Actions {
		fmt.Printf("  [%s] document %d (%s): %s\n", a.Policy, a.DocumentID, a.Source, a.Reason)
	}
	if report.DryRun && len(report.Actions) > 0 {
		fmt.Println()
		fmt.Println("Re-run with --apply to delete these documents.")
	}
}
