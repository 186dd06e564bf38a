// scale_test.go: scale and performance testing with synthetic data.
// Run: go test ./scripts/bench/ -run TestScale -v -timeout 10m
//
// Generates synthetic corpora at 1K and 5K documents, then benchmarks
// ingest (distill + save), recent listing, entity rollups, and stats.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/store"
)

// ScaleTier defines a test tier.
type ScaleTier struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
}

// ScaleResult stores benchmark results for a tier.
type ScaleResult struct {
	Tier         string  `json:"tier"`
	Documents    int     `json:"documents"`
	Entities     int64   `json:"entities"`
	Triples      int64   `json:"triples"`
	DBSizeBytes  int64   `json:"db_size_bytes"`
	IngestMs     float64 `json:"ingest_ms"`
	IngestPerSec float64 `json:"ingest_per_sec"`
	RecentP50    float64 `json:"recent_p50_ms"`
	RecentP99    float64 `json:"recent_p99_ms"`
	TopMs        float64 `json:"top_entities_ms"`
	StatsMs      float64 `json:"stats_ms"`
}

var tiers = []ScaleTier{
	{"small", 1000},
	{"medium", 5000},
}

// Entity pools with realistic distribution (Zipf-like: few appear often,
// most appear rarely)
var people = []string{
	"Jane Doe", "Bob Smith", "Alice Chen", "Frank Moore", "Grace Hopper",
	"Carol White", "Dan Brown", "Alan Turing", "Erin Woods", "Hank Green",
	"Iris Young", "Jack Black", "Kate Bell", "Liam Gray", "Maya Patel",
	"Noah Reed", "Owen Price", "Pia Stone", "Ruth Lake", "Seth Vance",
}

var orgs = []string{
	"Acme Corp", "Globex Inc", "Stark Industries", "NASA", "IBM",
	"CERN", "Wayne Enterprises", "Hooli Systems", "MIT", "NOAA",
}

var cities = []string{
	"Boston, MA", "Austin, TX", "Chicago, IL", "Portland, OR",
	"Denver, CO", "Seattle, WA", "Atlanta, GA", "Phoenix, AZ",
}

var contacts = []string{
	"ops@acme.io", "oncall@globex.io", "https://wiki.acme.io/runbook",
	"alerts@stark.dev", "https://status.globex.io", "www.hooli.sys/incidents",
}

func zipfPick(rng *rand.Rand, values []string) string {
	idx := int(float64(len(values)) * (float64(rng.Intn(100)) / 100.0) * (float64(rng.Intn(100)) / 100.0))
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

func generateSyntheticDocument(rng *rand.Rand, idx int) (string, string) {
	// Realistic content lengths: 100-2000 chars
	contentLen := 100 + rng.Intn(1900)

	content := fmt.Sprintf("Note %05d. %s opened the review for %s. ",
		idx, zipfPick(rng, people), zipfPick(rng, orgs))

	// Filler sentences that carry extractable entities, like real notes do
	templates := []string{
		"%s filed the incident summary with %s. ",
		"Deploy window confirmed by %s for the %s rollout. ",
		"Meeting notes: %s and %s walked through the migration plan. ",
		"Escalation path: contact %s before paging %s. ",
		"%s relocated the workshop to %s. ",
		"Follow-up due %d/%d/2026 per %s. ",
		"Runbook and dashboards live at %s. ",
		"Handoff recorded on %d/%d/2026 at the %s office. ",
	}

	for len(content) < contentLen {
		switch rng.Intn(8) {
		case 0:
			content += fmt.Sprintf(templates[0], zipfPick(rng, people), zipfPick(rng, orgs))
		case 1:
			content += fmt.Sprintf(templates[1], zipfPick(rng, people), zipfPick(rng, orgs))
		case 2:
			content += fmt.Sprintf(templates[2], zipfPick(rng, people), zipfPick(rng, people))
		case 3:
			content += fmt.Sprintf(templates[3], zipfPick(rng, contacts), zipfPick(rng, people))
		case 4:
			content += fmt.Sprintf(templates[4], zipfPick(rng, people), zipfPick(rng, cities))
		case 5:
			content += fmt.Sprintf(templates[5], 1+rng.Intn(12), 1+rng.Intn(28), zipfPick(rng, people))
		case 6:
			content += fmt.Sprintf(templates[6], zipfPick(rng, contacts))
		case 7:
			content += fmt.Sprintf(templates[7], 1+rng.Intn(12), 1+rng.Intn(28), zipfPick(rng, cities))
		}
	}

	if len(content) > contentLen {
		content = content[:contentLen]
	}

	source := fmt.Sprintf("synthetic/note_%05d.md", idx)
	return content, source
}

func benchmarkAtScale(t *testing.T, tier ScaleTier) ScaleResult {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "distill.db")

	s, err := store.NewStore(store.StoreConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("[%s] Failed to create store: %v", tier.Name, err)
	}
	defer s.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(42)) // deterministic for reproducibility
	d := distill.New()

	result := ScaleResult{
		Tier:      tier.Name,
		Documents: tier.Documents,
	}

	// --- INGEST BENCHMARK ---
	t.Logf("[%s] Ingesting %d documents...", tier.Name, tier.Documents)
	ingestStart := time.Now()

	for i := 0; i < tier.Documents; i++ {
		content, source := generateSyntheticDocument(rng, i)
		res := d.Distill(content)
		if _, err := s.SaveResult(ctx, content, source, res); err != nil {
			t.Fatalf("[%s] Failed to save document %d: %v", tier.Name, i, err)
		}
	}

	ingestDuration := time.Since(ingestStart)
	result.IngestMs = float64(ingestDuration.Milliseconds())
	result.IngestPerSec = float64(tier.Documents) / ingestDuration.Seconds()
	t.Logf("[%s] Ingest: %d documents in %.1fs (%.0f/sec)",
		tier.Name, tier.Documents, ingestDuration.Seconds(), result.IngestPerSec)

	// --- RECENT LISTING BENCHMARK ---
	var recentTimes []float64
	iterations := 50
	for i := 0; i < iterations; i++ {
		start := time.Now()
		if _, err := s.ListDocuments(ctx, store.ListOpts{Limit: 10}); err != nil {
			t.Fatalf("[%s] ListDocuments: %v", tier.Name, err)
		}
		recentTimes = append(recentTimes, float64(time.Since(start).Microseconds())/1000.0)
	}

	sortFloat64s(recentTimes)
	result.RecentP50 = recentTimes[len(recentTimes)/2]
	result.RecentP99 = recentTimes[int(float64(len(recentTimes))*0.99)]
	t.Logf("[%s] Recent: P50=%.1fms P99=%.1fms",
		tier.Name, result.RecentP50, result.RecentP99)

	// --- TOP ENTITIES BENCHMARK ---
	topStart := time.Now()
	for i := 0; i < 10; i++ {
		if _, err := s.TopEntities(ctx, 20); err != nil {
			t.Fatalf("[%s] TopEntities: %v", tier.Name, err)
		}
	}
	result.TopMs = float64(time.Since(topStart).Milliseconds()) / 10.0
	t.Logf("[%s] TopEntities: %.1fms avg", tier.Name, result.TopMs)

	// --- STATS BENCHMARK ---
	statsStart := time.Now()
	for i := 0; i < 10; i++ {
		if _, err := s.Stats(ctx); err != nil {
			t.Fatalf("[%s] Stats: %v", tier.Name, err)
		}
	}
	result.StatsMs = float64(time.Since(statsStart).Milliseconds()) / 10.0
	t.Logf("[%s] Stats: %.1fms avg", tier.Name, result.StatsMs)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("[%s] Stats: %v", tier.Name, err)
	}
	result.Entities = stats.EntityCount
	result.Triples = stats.TripleCount
	t.Logf("[%s] Extracted %d entities, %d triples", tier.Name, result.Entities, result.Triples)

	// --- DB SIZE ---
	if info, err := os.Stat(dbPath); err == nil {
		result.DBSizeBytes = info.Size()
		t.Logf("[%s] DB size: %.1f MB", tier.Name, float64(info.Size())/(1024*1024))
	}

	return result
}

func TestScale(t *testing.T) {
	var results []ScaleResult

	for _, tier := range tiers {
		t.Run(tier.Name, func(t *testing.T) {
			result := benchmarkAtScale(t, tier)
			results = append(results, result)
		})
	}

	// Write report
	report := map[string]interface{}{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"platform":     runtime.GOOS + "/" + runtime.GOARCH,
		"go_version":   runtime.Version(),
		"tiers":        results,
	}

	jsonBytes, _ := json.MarshalIndent(report, "", "  ")
	home, _ := os.UserHomeDir()
	outPath := filepath.Join(home, ".distill", "scale_results.json")
	os.WriteFile(outPath, jsonBytes, 0644)
	t.Logf("\nScale report written to %s", outPath)

	// Print summary table
	t.Log("\n=== SCALE BENCHMARK SUMMARY ===")
	t.Log("Tier       | Documents | Ingest/sec | Recent P50 | Recent P99 | Stats   | DB Size")
	t.Log("-----------|-----------|------------|------------|------------|---------|--------")
	for _, r := range results {
		t.Logf("%-10s | %9d | %10.0f | %9.1fms | %9.1fms | %5.1fms | %.1f MB",
			r.Tier, r.Documents, r.IngestPerSec,
			r.RecentP50, r.RecentP99, r.StatsMs,
			float64(r.DBSizeBytes)/(1024*1024))
	}

	// Performance gates
	for _, r := range results {
		if r.Tier == "medium" {
			if r.RecentP99 > 500 {
				t.Errorf("[%s] Recent P99 too high: %.1fms (target: <500ms)", r.Tier, r.RecentP99)
			}
			if r.StatsMs > 500 {
				t.Errorf("[%s] Stats too slow: %.1fms (target: <500ms)", r.Tier, r.StatsMs)
			}
			if r.IngestPerSec < 25 {
				t.Errorf("[%s] Ingest too slow: %.0f/sec (target: >25/sec)", r.Tier, r.IngestPerSec)
			}
		}
	}
}

func sortFloat64s(a []float64) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}
