package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hurttlocker/distill/internal/cleanse"
	"github.com/hurttlocker/distill/internal/config"
	"github.com/hurttlocker/distill/internal/distill"
	"github.com/hurttlocker/distill/internal/fingerprint"
	"github.com/hurttlocker/distill/internal/ingest"
	"github.com/hurttlocker/distill/internal/store"
)

// newDistiller builds the pipeline with the summary budget taken from
// the resolved configuration.
func newDistiller() (*distill.Distiller, error) {
	rc, err := config.ResolveConfig(config.ResolveOptions{ConfigPath: globalConfigPath})
	if err != nil {
		return nil, err
	}
	budget, err := rc.SummaryBudget()
	if err != nil {
		return nil, err
	}
	return distill.New(distill.WithSummaryBudget(budget)), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseInputArgs handles the shared "<file|-> [--json]" argument shape.
func parseInputArgs(command string, args []string) (path string, jsonOut bool, err error) {
	for _, arg := range args {
		switch {
		case arg == "--json":
			jsonOut = true
		case strings.HasPrefix(arg, "-") && arg != "-":
			return "", false, fmt.Errorf("unknown flag: %s", arg)
		case path == "":
			path = arg
		default:
			return "", false, fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if path == "" {
		return "", false, fmt.Errorf("usage: distill %s <file|-> [--json]", command)
	}
	return path, jsonOut, nil
}

// savedDocument is the JSON envelope for process --save.
type savedDocument struct {
	DocumentID        int64  `json:"document_id"`
	Source            string `json:"source"`
	EntityCount       int    `json:"entity_count"`
	RelationshipCount int    `json:"relationship_count"`
	SimHash           string `json:"simhash"`
	Summary           string `json:"summary"`
	DistilledAt       string `json:"distilled_at"`
}

func runProcess(args []string) error {
	var (
		path    string
		source  string
		save    bool
		jsonOut bool
		nearDup int
	)
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--save":
			save = true
		case args[i] == "--json":
			jsonOut = true
		case args[i] == "--source" && i+1 < len(args):
			source = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--source="):
			source = strings.TrimPrefix(args[i], "--source=")
		case args[i] == "--near-dup" && i+1 < len(args):
			n, err := parseNearDup(args[i+1])
			if err != nil {
				return err
			}
			nearDup = n
			i++
		case strings.HasPrefix(args[i], "--near-dup="):
			n, err := parseNearDup(strings.TrimPrefix(args[i], "--near-dup="))
			if err != nil {
				return err
			}
			nearDup = n
		case strings.HasPrefix(args[i], "-") && args[i] != "-":
			return fmt.Errorf("unknown flag: %s", args[i])
		case path == "":
			path = args[i]
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}
	if path == "" {
		return fmt.Errorf("usage: distill process <file|-> [--save] [--source <name>] [--near-dup <bits>] [--json]")
	}

	text, fileSource, err := ingest.ReadInput(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("input is empty")
	}
	if source == "" {
		source = fileSource
	}

	d, err := newDistiller()
	if err != nil {
		return err
	}

	if save {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		doc, err := ingest.Text(context.Background(), s, d, text, source, ingest.Options{NearDupDistance: nearDup})
		if err != nil {
			return err
		}
		if jsonOut || !isTTY() {
			return printJSON(savedDocument{
				DocumentID:        doc.ID,
				Source:            doc.Source,
				EntityCount:       doc.EntityCount,
				RelationshipCount: doc.RelationshipCount,
				SimHash:           fmt.Sprintf("%016x", doc.SimHash),
				Summary:           doc.Summary,
				DistilledAt:       doc.DistilledAt.Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		fmt.Printf("Saved document %d\n", doc.ID)
		fmt.Printf("  Source:        %s\n", doc.Source)
		fmt.Printf("  Entities:      %d\n", doc.EntityCount)
		fmt.Printf("  Relationships: %d\n", doc.RelationshipCount)
		fmt.Printf("  SimHash:       %016x\n", doc.SimHash)
		fmt.Printf("  Summary:       %s\n", truncate(doc.Summary, 120))
		return nil
	}

	res := d.Distill(text)
	if jsonOut || !isTTY() {
		return printJSON(res)
	}
	outputResultTTY(d, res, source)
	return nil
}

func parseNearDup(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 64 {
		return 0, fmt.Errorf("invalid --near-dup %q: want a bit distance in 0..64", raw)
	}
	return n, nil
}

func outputResultTTY(d *distill.Distiller, res *distill.Result, source string) {
	fmt.Printf("Source:  %s\n", source)
	fmt.Printf("Summary: %s\n", truncate(res.Summary, 120))
	fmt.Println()

	fmt.Printf("Entities (%d):\n", res.TotalEntities)
	for _, cat := range d.Categories() {
		values := res.Entities[cat]
		if len(values) == 0 {
			continue
		}
		fmt.Printf("  %-14s %s\n", cat, strings.Join(values, ", "))
	}

	fmt.Println()
	fmt.Printf("Relationships (%d):\n", res.TotalRelationships)
	for _, tr := range res.Relationships {
		fmt.Printf("  %-24s %-26s %s\n", truncate(tr.Subject, 24), tr.Predicate, truncate(tr.Object, 40))
	}
}

func runEntities(args []string) error {
	path, jsonOut, err := parseInputArgs("entities", args)
	if err != nil {
		return err
	}
	text, _, err := ingest.ReadInput(path)
	if err != nil {
		return err
	}

	d, err := newDistiller()
	if err != nil {
		return err
	}
	entities := d.ExtractEntities(text)

	if jsonOut || !isTTY() {
		return printJSON(entities)
	}
	for _, cat := range d.Categories() {
		fmt.Printf("%-14s %s\n", cat, strings.Join(entities[cat], ", "))
	}
	return nil
}

func runRelations(args []string) error {
	path, jsonOut, err := parseInputArgs("relations", args)
	if err != nil {
		return err
	}
	text, _, err := ingest.ReadInput(path)
	if err != nil {
		return err
	}

	d, err := newDistiller()
	if err != nil {
		return err
	}
	triples := d.ExtractRelationships(text, d.ExtractEntities(text))

	if jsonOut || !isTTY() {
		return printJSON(triples)
	}
	if len(triples) == 0 {
		fmt.Println("No relationships found.")
		return nil
	}
	for _, tr := range triples {
		fmt.Printf("%-24s %-26s %s\n", truncate(tr.Subject, 24), tr.Predicate, truncate(tr.Object, 40))
	}
	return nil
}

func runSummarize(args []string) error {
	var path, maxTokens string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--max-tokens" && i+1 < len(args):
			maxTokens = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--max-tokens="):
			maxTokens = strings.TrimPrefix(args[i], "--max-tokens=")
		case strings.HasPrefix(args[i], "-") && args[i] != "-":
			return fmt.Errorf("unknown flag: %s", args[i])
		case path == "":
			path = args[i]
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}
	if path == "" {
		return fmt.Errorf("usage: distill summarize <file|-> [--max-tokens <n>]")
	}
	if maxTokens != "" {
		if n, err := strconv.Atoi(maxTokens); err != nil || n <= 0 {
			return fmt.Errorf("invalid --max-tokens %q: must be a positive integer", maxTokens)
		}
	}

	text, _, err := ingest.ReadInput(path)
	if err != nil {
		return err
	}

	rc, err := config.ResolveConfig(config.ResolveOptions{ConfigPath: globalConfigPath, CLIMaxTokens: maxTokens})
	if err != nil {
		return err
	}
	budget, err := rc.SummaryBudget()
	if err != nil {
		return err
	}

	summary, err := distill.New().Summarize(text, budget)
	if err != nil {
		return err
	}
	fmt.Println(summary)
	return nil
}

func runFingerprint(args []string) error {
	var paths []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") && arg != "-" {
			return fmt.Errorf("unknown flag: %s", arg)
		}
		paths = append(paths, arg)
	}
	if len(paths) == 0 || len(paths) > 2 {
		return fmt.Errorf("usage: distill fingerprint <fileA> [fileB]")
	}

	textA, _, err := ingest.ReadInput(paths[0])
	if err != nil {
		return err
	}
	hashA := fingerprint.Hash(textA)

	if len(paths) == 1 {
		fmt.Printf("%016x\n", hashA)
		return nil
	}

	textB, _, err := ingest.ReadInput(paths[1])
	if err != nil {
		return err
	}
	hashB := fingerprint.Hash(textB)

	fmt.Printf("%-40s %016x\n", paths[0], hashA)
	fmt.Printf("%-40s %016x\n", paths[1], hashB)
	fmt.Printf("distance: %d\n", fingerprint.Distance(hashA, hashB))
	return nil
}

func runCleanse(args []string) error {
	var path string
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "-") && arg != "-":
			return fmt.Errorf("unknown flag: %s", arg)
		case path == "":
			path = arg
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if path == "" {
		return fmt.Errorf("usage: distill cleanse <file|->")
	}

	text, _, err := ingest.ReadInput(path)
	if err != nil {
		return err
	}
	fmt.Print(cleanse.Unescape(text))
	return nil
}

// runConfig prints the resolved configuration with the layer each value
// came from.
func runConfig(args []string) error {
	jsonOut := false
	for _, arg := range args {
		switch arg {
		case "--json":
			jsonOut = true
		default:
			if strings.HasPrefix(arg, "-") {
				return fmt.Errorf("unknown flag: %s", arg)
			}
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	rc, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath:  globalConfigPath,
		CLIDBPath:   globalDBPath,
		CLIRedisURL: globalRedisURL,
	})
	if err != nil {
		return err
	}

	if jsonOut || !isTTY() {
		return printJSON(rc)
	}

	fmt.Printf("Config file: %s\n\n", rc.ConfigPath)
	printResolved("db_path", rc.DBPath, store.DefaultDBPath+" (store default)")
	printResolved("redis_url", rc.RedisURL, "")
	printResolved("http_addr", rc.HTTPAddr, "")
	printResolved("max_tokens", rc.MaxTokens, "")
	return nil
}

func printResolved(name string, v config.ResolvedValue, emptyNote string) {
	value := v.Value
	from := string(v.Source)
	if v.From != "" {
		from = fmt.Sprintf("%s: %s", v.Source, v.From)
	}
	if value == "" {
		value = emptyNote
		from = "default"
	}
	fmt.Printf("  %-11s %-40s (%s)\n", name, value, from)
}
