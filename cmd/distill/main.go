package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hurttlocker/distill/internal/store"
)

const version = "0.1.0-dev"

// Global flags, stripped by parseGlobalFlags before command dispatch.
var (
	globalDBPath     string
	globalConfigPath string
	globalRedisURL   string
	globalVerbose    bool
)

func main() {
	_ = godotenv.Load()

	args := parseGlobalFlags(os.Args[1:])
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch args[0] {
	case "process":
		err = runProcess(args[1:])
	case "entities":
		err = runEntities(args[1:])
	case "relations":
		err = runRelations(args[1:])
	case "summarize":
		err = runSummarize(args[1:])
	case "fingerprint":
		err = runFingerprint(args[1:])
	case "cleanse":
		err = runCleanse(args[1:])
	case "publish":
		err = runPublish(args[1:])
	case "drain":
		err = runDrain(args[1:])
	case "serve":
		err = runServe(args[1:])
	case "stats":
		err = runStats(args[1:])
	case "recent":
		err = runRecent(args[1:])
	case "show":
		err = runShow(args[1:])
	case "top":
		err = runTop(args[1:])
	case "delete":
		err = runDelete(args[1:])
	case "vacuum":
		err = runVacuum(args[1:])
	case "maintain":
		err = runMaintain(args[1:])
	case "config":
		err = runConfig(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("distill %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Hint: Run `distill help` to see available commands.")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := remediationHint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "%s\n", hint)
		}
		os.Exit(1)
	}
}

// parseGlobalFlags strips the global flags from args, recording them in
// the package globals, and returns whatever is left for dispatch.
func parseGlobalFlags(args []string) []string {
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--db" && i+1 < len(args):
			globalDBPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--db="):
			globalDBPath = strings.TrimPrefix(args[i], "--db=")
		case args[i] == "--config" && i+1 < len(args):
			globalConfigPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--config="):
			globalConfigPath = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--redis" && i+1 < len(args):
			globalRedisURL = args[i+1]
			i++
		case strings.HasPrefix(args[i], "--redis="):
			globalRedisURL = strings.TrimPrefix(args[i], "--redis=")
		case args[i] == "--verbose":
			globalVerbose = true
		default:
			rest = append(rest, args[i])
		}
	}
	return rest
}

// getDBPath resolves the database path: --db flag first, then the
// DISTILL_DB environment variable, then empty so the store falls back
// to its default location.
func getDBPath() string {
	if globalDBPath != "" {
		return expandUserPath(globalDBPath)
	}
	if env := os.Getenv("DISTILL_DB"); env != "" {
		return expandUserPath(env)
	}
	return ""
}

func expandUserPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			if path == "~" {
				return home
			}
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// openStore opens the SQLite store at the resolved path.
func openStore() (store.Store, error) {
	s, err := store.NewStore(store.StoreConfig{DBPath: getDBPath()})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

// remediationHint maps common failures to a next step the user can
// take. Returns "" when there is nothing actionable to add.
func remediationHint(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unknown flag"),
		strings.Contains(msg, "unexpected argument"),
		strings.HasPrefix(msg, "usage:"):
		return "Hint: Run `distill help` for commands and flags."
	case strings.Contains(strings.ToLower(msg), "not a database"):
		return "Hint: Database appears corrupted or stale. Move it aside and re-save your documents to rebuild."
	case strings.Contains(msg, "opening store"):
		dbPath := getDBPath()
		if dbPath == "" {
			dbPath = store.DefaultDBPath
		}
		return fmt.Sprintf("Hint: Verify the DB path is valid and writable (resolved: %s).", dbPath)
	case strings.Contains(msg, "parsing redis url"),
		strings.Contains(msg, "connection refused"):
		return "Hint: Is Redis running? Pass --redis or set DISTILL_REDIS_URL to a reachable URL."
	}
	return ""
}

// formatBytes renders a byte count in human units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// isTTY reports whether stdout is a terminal. Human-facing commands
// print tables on a terminal and JSON when piped.
func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printUsage() {
	fmt.Printf(`distill %s - rule-based knowledge distillation for agent pipelines

Usage:
  distill [global flags] <command> [arguments]

Pipeline:
  process <file|->        Run the full pipeline (entities, relationships, summary)
  entities <file|->       Extract entities only
  relations <file|->      Extract relationship triples only
  summarize <file|->      Produce a token-bounded summary
  fingerprint <a> [b]     SimHash a file, or the distance between two
  cleanse <file|->        Decode literal escape sequences

Context cache:
  publish <file|->        Push raw text into the Redis context cache
  drain                   Distill pending cache entries into the store

Store:
  stats                   Show store statistics
  recent                  List recently distilled documents
  show <id>               Show one document with entities and triples
  top                     Most frequent entities across documents
  delete <id>             Delete a document
  vacuum                  Compact the database
  maintain                Run retention policies (dry-run unless --apply)

Service:
  serve                   Run the HTTP agent (--http) or MCP server (--mcp)

Other:
  config                  Print resolved configuration and provenance
  version                 Print version
  help                    Show this help message

Global Flags:
  --db <path>             SQLite database path (env: DISTILL_DB)
  --config <path>         Config file (default: ~/.distill/config.yaml)
  --redis <url>           Redis URL (env: DISTILL_REDIS_URL)
  --verbose               Verbose output

Process Flags:
  --save                  Persist the result to the store
  --source <name>         Source label (default: file path or "stdin")
  --near-dup <bits>       Reject texts within this SimHash distance
  --json                  JSON output (default when stdout is not a TTY)

Documentation:
  https://github.com/hurttlocker/distill
`, version)
}
