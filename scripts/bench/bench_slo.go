// bench_slo.go: SLO benchmark for the distillation pipeline and store reads.
// Run: go run scripts/bench/bench_slo.go [--db path] [--iterations N]
//
// Generates a JSON report with p50/p95/p99 latencies for each operation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/fingerprint"
	"github.com/hurttlocker/distill/internal/store"
)

type BenchResult struct {
	Operation  string  `json:"operation"`
	Iterations int     `json:"iterations"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	MinMs      float64 `json:"min_ms"`
	MaxMs      float64 `json:"max_ms"`
	MeanMs     float64 `json:"mean_ms"`
	Pass       bool    `json:"pass"`
	SLOMs      float64 `json:"slo_ms"`
}

type BenchReport struct {
	GeneratedAt   string        `json:"generated_at"`
	DBPath        string        `json:"db_path"`
	DocumentCount int           `json:"document_count"`
	EntityCount   int           `json:"entity_count"`
	Results       []BenchResult `json:"results"`
	AllPass       bool          `json:"all_pass"`
}

func main() {
	dbPath := flag.String("db", "", "Path to distill.db (default: ~/.distill/distill.db)")
	iterations := flag.Int("iterations", 20, "Number of iterations per benchmark")
	outFile := flag.String("out", "", "Output JSON file (default: stdout)")
	flag.Parse()

	if *dbPath == "" {
		*dbPath = store.DefaultDBPath
	}

	cfg := store.StoreConfig{DBPath: *dbPath}
	s, err := store.NewStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx := context.Background()

	stats, err := s.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting stats: %v\n", err)
		os.Exit(1)
	}

	report := BenchReport{
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		DBPath:        *dbPath,
		DocumentCount: int(stats.DocumentCount),
		EntityCount:   int(stats.EntityCount),
		AllPass:       true,
	}

	fmt.Fprintf(os.Stderr, "Distill SLO Benchmark\n")
	fmt.Fprintf(os.Stderr, "  DB: %s\n", *dbPath)
	fmt.Fprintf(os.Stderr, "  Documents: %d, Entities: %d\n", stats.DocumentCount, stats.EntityCount)
	fmt.Fprintf(os.Stderr, "  Iterations: %d\n\n", *iterations)

	// Representative agent-pipeline payloads
	sampleTexts := []string{
		"Jane Doe met Bob Smith at Acme Corp headquarters in Boston, MA on Jan 5, 2026 to review the Q3 roadmap. Follow up with jane@acme.com or see https://acme.com/roadmap for the slides.",
		"Deployment notes: Alice Chen pushed the release on 2/14/2026. Status page at https://status.globex.io. Escalations go to ops@globex.io, owner Frank Moore in Austin, TX.",
		"Meeting summary: Grace Hopper and Alan Turing discussed the COMPILER initiative. Next sync Mar 3, 2026 at 400 Main St. Notes mailed to grace@navy.mil.",
		"Incident report filed by Dan Brown on 3/1/2026: the NYSE feed stalled. Postmortem at www.example.com/postmortems/231, reviewed by Carol White in Chicago, IL.",
	}

	d := distill.New()

	// 1. Full pipeline
	distillTimes := benchmarkDistill(d, sampleTexts, *iterations)
	distillResult := computeResult("distill_full", distillTimes, 50)
	report.Results = append(report.Results, distillResult)
	if !distillResult.Pass {
		report.AllPass = false
	}

	// 2. Entity extraction alone
	extractTimes := benchmarkExtract(d, sampleTexts, *iterations)
	extractResult := computeResult("extract_entities", extractTimes, 25)
	report.Results = append(report.Results, extractResult)
	if !extractResult.Pass {
		report.AllPass = false
	}

	// 3. SimHash fingerprinting
	hashTimes := benchmarkFingerprint(sampleTexts, *iterations)
	hashResult := computeResult("fingerprint", hashTimes, 10)
	report.Results = append(report.Results, hashResult)
	if !hashResult.Pass {
		report.AllPass = false
	}

	// 4. Recent-documents listing
	recentTimes := benchmarkRecent(ctx, s, *iterations)
	recentResult := computeResult("store_recent", recentTimes, 2000)
	report.Results = append(report.Results, recentResult)
	if !recentResult.Pass {
		report.AllPass = false
	}

	// 5. Entity frequency rollup
	topTimes := benchmarkTopEntities(ctx, s, *iterations)
	topResult := computeResult("store_top_entities", topTimes, 5000)
	report.Results = append(report.Results, topResult)
	if !topResult.Pass {
		report.AllPass = false
	}

	for _, r := range report.Results {
		status := "✅ PASS"
		if !r.Pass {
			status = "❌ FAIL"
		}
		fmt.Fprintf(os.Stderr, "  %s: p50=%.1fms p95=%.1fms p99=%.1fms (SLO: %.0fms) %s\n",
			r.Operation, r.P50Ms, r.P95Ms, r.P99Ms, r.SLOMs, status)
	}

	if report.AllPass {
		fmt.Fprintf(os.Stderr, "\n✅ All SLOs met\n")
	} else {
		fmt.Fprintf(os.Stderr, "\n❌ Some SLOs missed\n")
	}

	jsonBytes, _ := json.MarshalIndent(report, "", "  ")
	if *outFile != "" {
		os.WriteFile(*outFile, jsonBytes, 0644)
		fmt.Fprintf(os.Stderr, "\nReport written to %s\n", *outFile)
	} else {
		fmt.Println(string(jsonBytes))
	}
}

func benchmarkDistill(d *distill.Distiller, texts []string, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		text := texts[i%len(texts)]
		start := time.Now()
		_ = d.Distill(text)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkExtract(d *distill.Distiller, texts []string, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		text := texts[i%len(texts)]
		start := time.Now()
		_ = d.ExtractEntities(text)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkFingerprint(texts []string, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		text := texts[i%len(texts)]
		start := time.Now()
		_ = fingerprint.Hash(text)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkRecent(ctx context.Context, s store.Store, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, _ = s.ListDocuments(ctx, store.ListOpts{Limit: 10})
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkTopEntities(ctx context.Context, s store.Store, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, _ = s.TopEntities(ctx, 20)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func computeResult(name string, times []float64, sloMs float64) BenchResult {
	sort.Float64s(times)
	n := len(times)
	if n == 0 {
		return BenchResult{Operation: name, SLOMs: sloMs}
	}

	sum := 0.0
	for _, t := range times {
		sum += t
	}

	p95 := times[int(float64(n)*0.95)]
	result := BenchResult{
		Operation:  name,
		Iterations: n,
		P50Ms:      times[n/2],
		P95Ms:      p95,
		P99Ms:      times[int(float64(n)*0.99)],
		MinMs:      times[0],
		MaxMs:      times[n-1],
		MeanMs:     sum / float64(n),
		SLOMs:      sloMs,
		Pass:       p95 <= sloMs,
	}

	return result
}
